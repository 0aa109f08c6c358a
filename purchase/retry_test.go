package purchase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryRetriesTransientFailures(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, Multiplier: 2}
	got, err := WithRetry(context.Background(), cfg, "list purchases", func() (string, error) {
		calls++
		if calls < 3 {
			return "", &APIError{Op: "list purchases", Status: 503, Err: ErrServer}
		}
		return "page", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if got != "page" || calls != 3 {
		t.Fatalf("expected success on attempt 3, got %q after %d attempts", got, calls)
	}
}

func TestWithRetryStopsOnNonRetryableFailure(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond}
	_, err := WithRetry(context.Background(), cfg, "create purchase", func() (int, error) {
		calls++
		return 0, &ValidationError{Op: "create purchase", Message: "bad"}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	var serr *SyncError
	if !errors.As(err, &serr) || serr.Retries != 1 {
		t.Fatalf("expected SyncError after 1 attempt, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected the cause preserved, got %v", err)
	}
}

func TestWithRetryExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond}
	_, err := WithRetry(context.Background(), cfg, "fetch suppliers", func() ([]Supplier, error) {
		calls++
		return nil, &APIError{Op: "fetch suppliers", Err: ErrNetwork}
	})
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	var serr *SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SyncError, got %v", err)
	}
	if serr.Retries != 2 || !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected 2 recorded attempts wrapping ErrNetwork, got %+v", serr)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialWait: 50 * time.Millisecond}
	_, err := WithRetry(ctx, cfg, "list purchases", func() (int, error) {
		calls++
		cancel()
		return 0, &APIError{Op: "list purchases", Err: ErrNetwork}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation before any retry, got %d attempts", calls)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&APIError{Op: "x", Err: ErrNetwork}, true},
		{&APIError{Op: "x", Status: 500, Err: ErrServer}, true},
		{&APIError{Op: "x", Status: 401, Err: ErrUnauthorized}, false},
		{&APIError{Op: "x", Err: ErrMalformedResponse}, false},
		{&ValidationError{Op: "x"}, false},
	}
	for i, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("case %d (%v): expected %v, got %v", i, tc.err, tc.want, got)
		}
	}
}

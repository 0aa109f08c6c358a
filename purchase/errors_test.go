package purchase

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIErrorUnwrapsToSentinel(t *testing.T) {
	err := &APIError{Op: "create purchase", Status: 401, Err: ErrUnauthorized, Detail: "token rejected"}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("expected errors.Is to reach ErrUnauthorized")
	}
	want := "create purchase failed with status 401: unauthorized"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	noStatus := &APIError{Op: "list purchases", Err: ErrNetwork}
	if noStatus.Error() != "list purchases failed: network failure" {
		t.Fatalf("unexpected message: %q", noStatus.Error())
	}
}

func TestSyncErrorReportsAttempts(t *testing.T) {
	inner := &APIError{Op: "list purchases", Status: 503, Err: ErrServer}
	err := &SyncError{Op: "list purchases", Err: inner, Retries: 3}
	if !errors.Is(err, ErrServer) {
		t.Fatal("expected errors.Is to reach ErrServer through both wrappers")
	}
	want := fmt.Sprintf("list purchases failed after 3 attempts: %v", inner)
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := &ValidationError{Op: "create purchase", Fields: map[string][]string{
		"ref_no":     {"has already been taken"},
		"contact_id": {"is required", "must be a number"},
	}}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	want := "create purchase rejected by validation (contact_id: is required; must be a number, ref_no: has already been taken)"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	bare := &ValidationError{Op: "update purchase", Message: "totals do not add up"}
	if bare.Error() != "update purchase rejected by validation: totals do not add up" {
		t.Fatalf("unexpected message: %q", bare.Error())
	}

	var verr *ValidationError
	if !errors.As(error(err), &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected errors.As to recover the field detail, got %v", verr)
	}
}

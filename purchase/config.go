package purchase

import (
	"context"
	"time"
)

// TokenSource supplies the bearer credential for remote calls. How the token
// is obtained is out of scope here; it is consumed opaquely.
// Implementations must be safe for concurrent use.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields tok.
func StaticToken(tok string) TokenSource {
	return func(context.Context) (string, error) { return tok, nil }
}

// RateLimitConfig holds client-side rate limiter settings.
type RateLimitConfig struct {
	Interval time.Duration // time between allowed requests
	Burst    int           // max burst size
}

// DefaultRateLimitConfig returns ~100 req/min with burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Interval: 600 * time.Millisecond,
		Burst:    10,
	}
}

// ClientConfig controls the remote purchase API client.
type ClientConfig struct {
	BaseURL   string
	Token     TokenSource
	DeviceID  string          // reported to the service, persisted locally
	Timeout   time.Duration   // per-request timeout (default 15s)
	Retry     RetryConfig     // retry settings for idempotent reads (zero uses defaults)
	RateLimit RateLimitConfig // request pacing (zero uses defaults)
}

// GetRetryConfig returns Retry config or defaults if not set.
func (c ClientConfig) GetRetryConfig() RetryConfig {
	if c.Retry.MaxAttempts == 0 {
		return DefaultRetryConfig()
	}
	return c.Retry
}

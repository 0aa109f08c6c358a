package purchase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Connectivity reports whether the remote service is reachable right now.
// Implementations are queried immediately before each sync or refresh attempt
// and must not cache results.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to the Connectivity interface.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline never reports offline. Useful when the caller has its own
// reachability signal.
var AlwaysOnline = ConnectivityFunc(func(context.Context) bool { return true })

// AuthStatus reports whether a usable credential is present.
type AuthStatus interface {
	Authenticated(ctx context.Context) bool
}

// AuthStatusFunc adapts a function to the AuthStatus interface.
type AuthStatusFunc func(ctx context.Context) bool

func (f AuthStatusFunc) Authenticated(ctx context.Context) bool { return f(ctx) }

// NewPingProbe builds a Connectivity probe that issues a HEAD request against
// url. Any HTTP response, error status included, proves reachability.
func NewPingProbe(url string, timeout time.Duration) Connectivity {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return ConnectivityFunc(func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := hc.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	})
}

// TokenAuthStatus reports authenticated when the source yields a non-empty
// token that, if it parses as a JWT, has not expired. Opaque tokens count on
// presence alone.
func TokenAuthStatus(src TokenSource) AuthStatus {
	return AuthStatusFunc(func(ctx context.Context) bool {
		tok, err := src(ctx)
		if err != nil || strings.TrimSpace(tok) == "" {
			return false
		}
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
			return true
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return true
		}
		return exp.After(time.Now())
	})
}

// ABOUTME: Typed errors for purchase sync operations.
// ABOUTME: Enables programmatic error handling with errors.Is() and errors.As().
package purchase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for programmatic handling.
var (
	ErrNetwork           = errors.New("network failure")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrServer            = errors.New("server error")
	ErrValidation        = errors.New("validation rejected")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoConnectivity    = errors.New("no connectivity")
	ErrNotFound          = errors.New("not found")
	ErrEmptyPurchase     = errors.New("purchase has no lines")
)

// APIError wraps a remote call failure with operation context.
type APIError struct {
	Op     string // "create purchase", "list purchases", ...
	Status int    // HTTP status, 0 when the request never completed
	Err    error  // underlying sentinel classification
	Detail string // server message if any
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError carries the per-field messages of a 422 response. The
// record stays unsynced; retrying without changing the data will fail again.
type ValidationError struct {
	Op      string
	Message string              // server-level message if any
	Fields  map[string][]string // field name -> rejection messages
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Message != "" {
			return fmt.Sprintf("%s rejected by validation: %s", e.Op, e.Message)
		}
		return fmt.Sprintf("%s rejected by validation", e.Op)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return fmt.Sprintf("%s rejected by validation (%s)", e.Op, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SyncError wraps errors with operation context after retries are exhausted.
type SyncError struct {
	Op      string // operation that failed
	Err     error  // underlying typed error
	Retries int    // attempts made
	Detail  string // extra context if any
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Retries, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

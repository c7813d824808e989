package teable

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when a call is attempted with an
	// empty credential. Resolution of an empty credential is not an
	// error; using one is.
	ErrMissingCredential = errors.New("no backend credential configured for tenant")

	// ErrUpstreamTimeout marks a backend call that exceeded the request
	// timeout. Distinct from UpstreamError because there is no backend
	// status or body to report.
	ErrUpstreamTimeout = errors.New("backend request timed out")

	// ErrTableNotConfigured is returned when a logical table name has no
	// identifier in the tenant config.
	ErrTableNotConfigured = errors.New("table not configured for tenant")
)

// UpstreamError carries a non-success backend response: the original
// status code and the raw error body, for diagnosability. Callers never
// retry automatically; creates are not idempotent.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, string(e.Body))
}

// AsUpstreamError unwraps err into an UpstreamError if it is one.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

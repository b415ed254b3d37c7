package authz

import "errors"

var (
	// ErrUnauthorized is returned when a token does not hold any of the
	// requested permissions.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoToken is returned when a check requires a token and none was
	// provided.
	ErrNoToken = errors.New("no token provided")
)

// VerificationError reports a failure to verify a token against the backing
// authorization service. The instrumentation layer never inspects it beyond
// the error discriminant.
type VerificationError struct {
	// Msg describes the verification step that failed.
	Msg string
	// Err is the underlying transport or service error, if any.
	Err error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Err != nil {
		return "verifying token: " + e.Msg + ": " + e.Err.Error()
	}
	return "verifying token: " + e.Msg
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error { return e.Err }

package interview

import "fmt"

// Error represents a session-level failure.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrPermission is a microphone access failure. Session start aborts
	// cleanly without leaking partially opened resources.
	ErrPermission ErrorType = "permission_error"
	// ErrTransport is a connect or send failure on the streaming session.
	ErrTransport ErrorType = "transport_error"
	// ErrUpstream is a failure of the profile analysis or report
	// generation call. Recoverable: the caller returns to setup and may
	// retry.
	ErrUpstream ErrorType = "upstream_error"
	// ErrState is a lifecycle misuse, such as ending an interview that
	// never started.
	ErrState ErrorType = "state_error"
)

// NewPermissionError creates a permission error.
func NewPermissionError(message string, cause error) *Error {
	return &Error{Type: ErrPermission, Message: message, Cause: cause}
}

// NewTransportError creates a transport error.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, Cause: cause}
}

// NewUpstreamError creates an upstream analysis/report error.
func NewUpstreamError(message string, cause error) *Error {
	return &Error{Type: ErrUpstream, Message: message, Cause: cause}
}

// NewStateError creates a lifecycle error.
func NewStateError(message string) *Error {
	return &Error{Type: ErrState, Message: message}
}

// IsRetryable returns true if the failed operation may simply be retried.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrUpstream, ErrTransport:
		return true
	default:
		return false
	}
}

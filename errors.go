package authgate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the session core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is an exported constant or variable used by the session core.
	//
	// The message deliberately omits attempt counts and remaining lockout
	// time so callers cannot enumerate guard state.
	ErrLockedOut = errors.New("account temporarily locked")
	// ErrValidationFailed is an exported constant or variable used by the session core.
	ErrValidationFailed = errors.New("validation failed")
	// ErrAuthenticationRequired is an exported constant or variable used by the session core.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSessionExpired is an exported constant or variable used by the session core.
	ErrSessionExpired = errors.New("session expired")
	// ErrRequestFailed is an exported constant or variable used by the session core.
	ErrRequestFailed = errors.New("request failed")
	// ErrTimeout is an exported constant or variable used by the session core.
	ErrTimeout = errors.New("request timed out")
	// ErrInvalidFile is an exported constant or variable used by the session core.
	ErrInvalidFile = errors.New("invalid file")
	// ErrGuardUnavailable is an exported constant or variable used by the session core.
	ErrGuardUnavailable = errors.New("attempt guard backend unavailable")
	// ErrStoreUnavailable is an exported constant or variable used by the session core.
	ErrStoreUnavailable = errors.New("token store backend unavailable")
	// ErrManagerNotReady is an exported constant or variable used by the session core.
	ErrManagerNotReady = errors.New("manager not initialized")
)

// ValidationError reports every policy rule a set of fields violated.
// Reasons preserve validator evaluation order. It unwraps to
// [ErrValidationFailed] so callers can branch with errors.Is.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Reasons) == 0 {
		return ErrValidationFailed.Error()
	}
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// RequestError is returned by the dispatcher for non-2xx responses that are
// not authentication failures. Message has been stripped of HTML markup
// before being surfaced. It unwraps to [ErrRequestFailed].
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ErrRequestFailed.Error()
	}
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.Status, e.Message)
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

package errors

import (
	"fmt"
	"net/http"
)

// Error represents an application error with an HTTP-mappable code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two application errors by code and message so that
// errors.Is(Wrap(ErrTokenExpired, cause), ErrTokenExpired) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of base carrying err as its cause. The sentinel
// values below stay immutable.
func Wrap(base *Error, err error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Err:     err,
	}
}

// Commerce error taxonomy
var (
	// ErrAuthRequired: a mutating cart/favorites call was attempted while
	// signed out. Recovered by prompting sign-in, never auto-retried.
	ErrAuthRequired = New(http.StatusUnauthorized, "Sign in required", nil)

	// ErrTokenExpired: the backend rejected the bearer credential. Subject
	// to the refresh-once-and-retry policy before being surfaced.
	ErrTokenExpired = New(http.StatusUnauthorized, "Session expired", nil)

	// ErrValidation: the request was rejected before reaching the network
	// layer (e.g. unserviceable pincode, zero quantity).
	ErrValidation = New(http.StatusBadRequest, "Validation error", nil)

	// ErrPaymentGateway: the gateway reported failure or the server-side
	// verification did not pass. Recoverable by retrying payment.
	ErrPaymentGateway = New(http.StatusPaymentRequired, "Payment failed", nil)

	// ErrPostPaymentPersistence: payment was captured and verified but the
	// order record could not be saved. Never retried automatically.
	ErrPostPaymentPersistence = New(http.StatusInternalServerError, "Payment captured but order could not be saved", nil)

	// ErrNetwork: transport-level failure talking to the backend.
	ErrNetwork = New(http.StatusServiceUnavailable, "Service unavailable", nil)

	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
)

// From coerces any error into an *Error.
func From(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return Wrap(ErrInternalServer, err)
}

// Package core holds the coded error values shared across packages.
package core

import "fmt"

// Error is a coded error with an optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError returns a copy of base carrying cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

var (
	// Broker errors
	ErrTransport    = &Error{Code: "TRANSPORT", Message: "broker request failed"}
	ErrStreamClosed = &Error{Code: "STREAM_CLOSED", Message: "price stream terminated"}
	ErrOrderFailed  = &Error{Code: "ORDER_FAILED", Message: "order failed"}
	ErrNotFound     = &Error{Code: "NOT_FOUND", Message: "not found"}

	// Data errors
	ErrNoData = &Error{Code: "NO_DATA", Message: "no data available"}

	// Config / parameter errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrInvalidParams = &Error{Code: "INVALID_PARAMS", Message: "invalid strategy parameters"}
)

// Package apperr provides the structured error taxonomy shared by the
// attendance and account services. Every user-recoverable failure is
// reported as an *Error with a stable code and a human-readable
// message; only persistence failures carry a wrapped cause.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	CodeMissingField        Code = "MISSING_FIELD"
	CodeDomainRejected      Code = "DOMAIN_REJECTED"
	CodeNoActiveSession     Code = "NO_ACTIVE_SESSION"
	CodeSessionEnded        Code = "SESSION_ENDED"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeSessionExpired      Code = "SESSION_EXPIRED"
	CodeLocationRequired    Code = "LOCATION_REQUIRED"
	CodeTooFar              Code = "TOO_FAR"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyStopped      Code = "ALREADY_STOPPED"
	CodeValidation          Code = "VALIDATION"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeDuplicateAccount    Code = "DUPLICATE_ACCOUNT"
	CodePersistence         Code = "PERSISTENCE"
)

// Error is a structured application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause. Used for persistence failures, which are the
// only errors carrying an underlying error worth logging loudly.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the code from err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool { return CodeOf(err) == code }

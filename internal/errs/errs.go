package errs

import (
	"context"
	"errors"
	"net/http"
)

// Code is an application error code.
type Code string

const (
	InvalidArgument    Code = "invalid_argument"
	NotFound           Code = "not_found"
	FailedPrecondition Code = "failed_precondition"
	AssertionFailed    Code = "assertion_failed"
	Timeout            Code = "timeout"
	Unavailable        Code = "unavailable"
	Canceled           Code = "canceled"
	Internal           Code = "internal"
)

// Process exit codes used by the command line tools.
const (
	ExitOK              = 0
	ExitAssertion       = 1
	ExitInvalidConfig   = 2
	ExitUnavailable     = 3
	ExitElementProblems = 4
	ExitOther           = 5
)

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
// Context cancellation and deadlines are recognized even when untyped.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	return Internal
}

// MessageOf returns the outermost typed message, or "internal error" for
// untyped errors so raw driver output never reaches a page or report header.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// HTTPStatus maps error code to HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case Timeout:
		return http.StatusGatewayTimeout
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps error to a process exit code. A nil error exits cleanly.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch CodeOf(err) {
	case AssertionFailed:
		return ExitAssertion
	case InvalidArgument:
		return ExitInvalidConfig
	case Unavailable:
		return ExitUnavailable
	case Timeout, NotFound:
		return ExitElementProblems
	default:
		return ExitOther
	}
}

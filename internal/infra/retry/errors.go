package retry

import (
	"errors"
	"fmt"
)

// APIError is the HTTP-like failure produced by the generation client:
// a status plus the service's error body.
type APIError struct {
	Status int          `json:"status"`
	Data   APIErrorData `json:"data"`
}

// APIErrorData mirrors the service's JSON error envelope.
type APIErrorData struct {
	Error APIErrorBody `json:"error"`
}

// APIErrorBody is the inner error object.
type APIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (e *APIError) Error() string {
	if e.Data.Error.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Data.Error.Message)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// CodeError is a failure identified by a symbol, such as a network failure
// or a plan validation result.
type CodeError struct {
	Code    string
	Message string
}

// NewCodeError creates a CodeError.
func NewCodeError(code, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *CodeError) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorCode returns the symbol.
func (e *CodeError) ErrorCode() string { return e.Code }

// ClassifiedError is the normalized failure returned to callers. Error()
// yields the user-facing message; the raw diagnostic stays in RawMessage and
// the original error is reachable through Unwrap.
type ClassifiedError struct {
	Code        Code
	Kind        Kind
	Retryable   bool
	RawMessage  string
	UserMessage string

	// Attempts is the number of attempts made before giving up. Zero when
	// the error was classified outside of an executor.
	Attempts int

	cause error
}

func (e *ClassifiedError) Error() string { return e.UserMessage }

func (e *ClassifiedError) Unwrap() error { return e.cause }

// ErrCanceled is matched by the error returned when a call is abandoned
// because its context ended.
var ErrCanceled = errors.New("call canceled")

type canceledError struct {
	cause error
}

func (e *canceledError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCanceled, e.cause)
}

func (e *canceledError) Is(target error) bool { return target == ErrCanceled }

func (e *canceledError) Unwrap() error { return e.cause }

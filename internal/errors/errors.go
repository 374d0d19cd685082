package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a chatsplit error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"        // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrParse          ErrorCode = "PARSE_ERROR"      // 422
	ErrStructural     ErrorCode = "STRUCTURAL_ERROR" // 422
	ErrCancelled      ErrorCode = "CANCELLED"        // 499
	ErrIO             ErrorCode = "IO_ERROR"         // 500
	ErrInternal       ErrorCode = "INTERNAL"         // 500
)

// statusClientClosed is the nginx-style status for a request abandoned by its caller.
const statusClientClosed = 499

// SplitError represents a structured error with code, status, and details.
type SplitError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *SplitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SplitError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SplitError {
	return &SplitError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a ledger entry that does not exist.
func NewNotFound(identifier string) *SplitError {
	return &SplitError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *SplitError {
	return &SplitError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewParse creates a 422 error for an input archive that cannot be parsed.
// Parse errors are fatal for the whole run.
func NewParse(path string, err error) *SplitError {
	msg := "input is not a valid JSON array"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SplitError{
		Code:    ErrParse,
		Status:  422,
		Message: msg,
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewStructural creates a 422 error for a single malformed conversation.
// Callers skip the conversation and continue.
func NewStructural(reason string) *SplitError {
	return &SplitError{
		Code:    ErrStructural,
		Status:  422,
		Message: reason,
	}
}

// NewIO creates a 500 error for a failed filesystem operation.
func NewIO(op string, err error) *SplitError {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &SplitError{
		Code:    ErrIO,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewCancelled creates a 499 error when an operation stops on context cancellation.
func NewCancelled(op string) *SplitError {
	return &SplitError{
		Code:    ErrCancelled,
		Status:  statusClientClosed,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"op": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SplitError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SplitError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a SplitError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SplitError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// CodeOf returns the code of a SplitError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	var sErr *SplitError
	if stderrors.As(err, &sErr) {
		return sErr.Code
	}
	return ErrInternal
}

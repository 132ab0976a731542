package domain

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned by every operation on a bridge after Dispose.
var ErrDisposed = errors.New("bridge is disposed")

// ErrUnsupported is returned when an optional store capability is missing.
var ErrUnsupported = errors.New("capability not supported")

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// CodeValidation indicates the runtime rejected a value.
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	// CodeExecution indicates an action (or command) failed.
	CodeExecution ErrorCode = "EXECUTION_ERROR"
	// CodeSync indicates a push or pull could not complete.
	CodeSync ErrorCode = "SYNC_ERROR"
	// CodeAdapter indicates an adapter or actuator could not serve a request.
	CodeAdapter ErrorCode = "ADAPTER_ERROR"
	// CodeDisposed indicates the bridge was used after Dispose.
	CodeDisposed ErrorCode = "DISPOSED_ERROR"
)

// Error is the typed failure returned by soft-tier bridge operations.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes disposed errors match ErrDisposed.
func (e *Error) Is(target error) bool {
	return target == ErrDisposed && e.Code == CodeDisposed
}

// CodeOf returns the code of a bridge error, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// NewValidationError creates a VALIDATION_ERROR for path.
func NewValidationError(path string, cause error) *Error {
	msg := "validation failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeValidation, Message: msg, Path: path, Cause: cause}
}

// NewExecutionError creates an EXECUTION_ERROR wrapping cause.
func NewExecutionError(message string, cause error) *Error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{Code: CodeExecution, Message: message, Cause: cause}
}

// NewSyncError creates a SYNC_ERROR for path.
func NewSyncError(path string, cause error) *Error {
	msg := "sync failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeSync, Message: msg, Path: path, Cause: cause}
}

// NewAdapterError creates an ADAPTER_ERROR.
func NewAdapterError(message string, cause error) *Error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{Code: CodeAdapter, Message: message, Cause: cause}
}

// NewDisposedError creates a DISPOSED_ERROR.
func NewDisposedError() *Error {
	return &Error{Code: CodeDisposed, Message: ErrDisposed.Error()}
}

// ValidationError is the failure shape a runtime returns when it rejects a write.
type ValidationError struct {
	Path   string // Semantic path of the rejected field
	Reason string // Human-readable reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Path, e.Reason)
}

// ValidationPath extracts the offending path from a runtime validation failure.
func ValidationPath(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Path, true
	}
	return "", false
}

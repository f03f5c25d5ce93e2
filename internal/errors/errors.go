package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeValidation indicates input the identity backend rejected outright
	// (duplicate email, malformed email, weak password). Never retried.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeAuthentication indicates a credential mismatch or an unconfirmed
	// email address. Never retried.
	ErrCodeAuthentication ErrorCode = "authentication"
	// ErrCodeTransient indicates a network or availability failure that is
	// safe to retry.
	ErrCodeTransient ErrorCode = "transient"
	// ErrCodeSessionInvalid indicates the refresh token was rejected as
	// expired or invalid; the session is unrecoverable.
	ErrCodeSessionInvalid ErrorCode = "session_invalid"
	// ErrCodePassword indicates a password reset/update failure, surfaced
	// verbatim from the backend.
	ErrCodePassword ErrorCode = "password"
	// ErrCodeBackendUnavailable indicates the identity backend client could
	// not be constructed or configured at all.
	ErrCodeBackendUnavailable ErrorCode = "backend_unavailable"
	// ErrCodeUnauthenticated indicates an operation that requires an
	// authenticated caller was invoked without one.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique
	// constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Authentication creates a new Authentication error.
func Authentication(message string) *AppError {
	return &AppError{Code: ErrCodeAuthentication, Message: message}
}

// Transient creates a new Transient error.
func Transient(message string) *AppError {
	return &AppError{Code: ErrCodeTransient, Message: message}
}

// SessionInvalid creates a new SessionInvalid error.
func SessionInvalid(message string) *AppError {
	return &AppError{Code: ErrCodeSessionInvalid, Message: message}
}

// Password creates a new Password error.
func Password(message string) *AppError {
	return &AppError{Code: ErrCodePassword, Message: message}
}

// BackendUnavailable creates a new BackendUnavailable error.
func BackendUnavailable(message string) *AppError {
	return &AppError{Code: ErrCodeBackendUnavailable, Message: message}
}

// Unauthenticated creates a new Unauthenticated error.
func Unauthenticated(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthenticated, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsAuthentication checks if an error is an Authentication error.
func IsAuthentication(err error) bool { return isCode(err, ErrCodeAuthentication) }

// IsTransient checks if an error is a Transient error.
func IsTransient(err error) bool { return isCode(err, ErrCodeTransient) }

// IsSessionInvalid checks if an error is a SessionInvalid error.
func IsSessionInvalid(err error) bool { return isCode(err, ErrCodeSessionInvalid) }

// IsPassword checks if an error is a Password error.
func IsPassword(err error) bool { return isCode(err, ErrCodePassword) }

// IsBackendUnavailable checks if an error is a BackendUnavailable error.
func IsBackendUnavailable(err error) bool { return isCode(err, ErrCodeBackendUnavailable) }

// IsUnauthenticated checks if an error is an Unauthenticated error.
func IsUnauthenticated(err error) bool { return isCode(err, ErrCodeUnauthenticated) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

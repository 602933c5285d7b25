package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("conflict")
	ErrInternal    = errors.New("internal error")
	ErrValidation  = errors.New("validation error")
	ErrEligibility = errors.New("eligibility denied")
	ErrUnavailable = errors.New("upstream unavailable")
	ErrWriteFailed = errors.New("upstream write failed")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details. Validation
// failures are reported before any network call is made.
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Conflict creates a conflict error (duplicate visit date for a record kind)
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Eligibility creates an access-denied error for workflow gating: the wrong
// assessment type for the current BMI, or no BMI context at all. This is an
// explicit denial, never a redirect.
func Eligibility(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrEligibility,
		Message:    message,
		Code:       "ELIGIBILITY_DENIED",
		HTTPStatus: http.StatusForbidden,
		Details:    details,
	}
}

// Unavailable creates an upstream read-failure error. Callers that know an
// empty fallback should absorb it instead of returning it.
func Unavailable(message string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrUnavailable, err),
		Message:    message,
		Code:       "UPSTREAM_UNAVAILABLE",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// WriteFailed creates an upstream write-failure error. The record must not be
// assumed saved; the caller may retry, the service never does.
func WriteFailed(message string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrWriteFailed, err),
		Message:    message,
		Code:       "UPSTREAM_WRITE_FAILED",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]string{"retryable": "true"},
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// IsConflict reports whether err is a visit-date conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsEligibility reports whether err is a workflow eligibility denial.
func IsEligibility(err error) bool {
	return errors.Is(err, ErrEligibility)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable reports whether err is an upstream read failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return &APIError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Forbidden creates a FORBIDDEN error. This is the server-side shape of an
// authorization failure: non-owner attempting an owner-only action.
func Forbidden(message string) *APIError {
	return &APIError{
		Code:    ErrForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(field, message string) *APIError {
	return &APIError{
		Code:    ErrValidation,
		Message: message,
		Field:   field,
		Status:  http.StatusUnprocessableEntity,
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return &APIError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return &APIError{
		Code:    ErrInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Conflict creates a CONFLICT error
func Conflict(resource string) *APIError {
	return &APIError{
		Code:    ErrConflict,
		Message: fmt.Sprintf("%s already exists or is in an invalid state", resource),
		Status:  http.StatusConflict,
	}
}

// RemoteRead creates a REMOTE_READ_ERROR for a failed query. Feed reads fall
// back to an empty list rather than blocking the page; this error is for the
// cases that must be surfaced.
func RemoteRead(operation string) *APIError {
	return &APIError{
		Code:    ErrRemoteRead,
		Message: fmt.Sprintf("%s failed", operation),
		Status:  http.StatusBadGateway,
	}
}

// RemoteWrite creates a REMOTE_WRITE_ERROR for a failed mutation, surfaced to
// the user as a dismissable message.
func RemoteWrite(operation string) *APIError {
	return &APIError{
		Code:    ErrRemoteWrite,
		Message: fmt.Sprintf("%s failed", operation),
		Status:  http.StatusBadGateway,
	}
}

// ToggleInFlight creates a TOGGLE_IN_FLIGHT error: a like toggle for the same
// post and identity is still outstanding, the new one is rejected not queued.
func ToggleInFlight(postID string) *APIError {
	return &APIError{
		Code:    ErrToggleInFlight,
		Message: fmt.Sprintf("a like toggle for post %s is already in flight", postID),
		Status:  http.StatusConflict,
	}
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

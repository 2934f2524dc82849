// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/customs-dev/customs/internal/storage"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/labstack/echo/v4"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-" msgpack:"-"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
	Field   string `json:"field,omitempty" msgpack:"field,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
		Field:   field,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// NewServerFaultError creates a 500 error for a batch aborted by the host.
// The underlying cause stays in the logs.
func NewServerFaultError(f *upload.ServerFault) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "SERVER_FAULT",
		Message: f.Reason.String(),
		Field:   f.FieldName,
	}
}

// NewSecurityFaultError creates a 400 error for a batch that bypassed the
// upload safeguards. The message never says which check failed.
func NewSecurityFaultError(f *upload.SecurityFault) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "SECURITY_CONCERN",
		Message: securityFaultMessage,
		Field:   f.FieldName,
	}
}

// securityFaultMessage is the only wording clients see for a security fault.
const securityFaultMessage = "the upload was rejected"

// NewMalformedDescriptorError creates a 422 error for a descriptor whose
// attribute trees disagree.
func NewMalformedDescriptorError(e *upload.StructuralMismatchError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "MALFORMED_DESCRIPTOR",
		Message: e.Error(),
		Field:   e.FieldName,
	}
}

// FromError maps domain errors to API errors. It returns nil for errors it
// does not know.
func FromError(err error) *APIError {
	var apiErr *APIError
	var serverFault *upload.ServerFault
	var securityFault *upload.SecurityFault
	var mismatch *upload.StructuralMismatchError

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &serverFault):
		return NewServerFaultError(serverFault)
	case errors.As(err, &securityFault):
		return NewSecurityFaultError(securityFault)
	case errors.As(err, &mismatch):
		return NewMalformedDescriptorError(mismatch)
	case errors.Is(err, upload.ErrDisabled):
		return NewServiceUnavailableError("file uploads are disabled")
	case errors.Is(err, storage.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	}
	return nil
}

// NewErrorHandler returns an echo error handler. With showDetails unknown
// errors carry their message in the details field.
// Usage: e.HTTPErrorHandler = api.NewErrorHandler(debug)
func NewErrorHandler(showDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		apiErr := FromError(err)
		if apiErr == nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				apiErr = &APIError{
					Status:  he.Code,
					Code:    "HTTP_ERROR",
					Message: fmt.Sprintf("%v", he.Message),
				}
			} else {
				apiErr = &APIError{
					Status:  http.StatusInternalServerError,
					Code:    "UNKNOWN_ERROR",
					Message: "An unexpected error occurred",
				}
				if showDetails {
					apiErr.Details = err.Error()
				}
			}
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}

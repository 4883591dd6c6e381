package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned alongside messages.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidPhoneNumber   = "INVALID_PHONE_NUMBER"
	CodeInvalidScheduledTime = "INVALID_SCHEDULED_TIME"
	CodeCallNotFound         = "CALL_NOT_FOUND"
	CodeInternalError        = "INTERNAL_ERROR"
)

// APIError is an error with an associated HTTP status and client-safe message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BadRequest creates a 400 APIError
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// NotFound creates a 404 APIError
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// InternalError creates a sanitized 500 APIError - never exposes internal details
func InternalError() *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
	}
}

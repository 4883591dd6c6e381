package apierrors

import (
	"errors"

	"voice-bridge-server/internal/phonecall/processor"
	"voice-bridge-server/internal/store"
)

// MapError converts domain/processor errors to APIErrors.
// This function centralizes all error mapping logic to ensure consistent
// error responses across the entire API.
//
// If the error is already an APIError, it returns it as-is.
// If the error is a known domain error, it maps it to an appropriate APIError.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, processor.ErrInvalidPhoneNumber):
		return BadRequest(CodeInvalidPhoneNumber, "Invalid phone number")

	case errors.Is(err, processor.ErrInvalidScheduledTime):
		return BadRequest(CodeInvalidScheduledTime, "Scheduled time must be a valid timestamp in the future")

	case errors.Is(err, processor.ErrCallNotFound), errors.Is(err, store.ErrNotFound):
		return NotFound(CodeCallNotFound, "Scheduled call not found")

	default:
		return InternalError()
	}
}

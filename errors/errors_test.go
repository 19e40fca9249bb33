package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("city is required")
	assert.Equal(t, "VALIDATION_ERROR: city is required", err.Error())

	wrapped := NewDatabaseError("failed to save subscription", fmt.Errorf("connection refused"))
	assert.Equal(t, "DATABASE_ERROR: failed to save subscription (caused by: connection refused)", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := NewExternalAPIError("weather provider unreachable", cause)

	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestAppError_Is_MatchesByType(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewNotFoundError("invalid or expired token"))

	assert.True(t, stderrors.Is(err, New(NotFoundError, "")))
	assert.False(t, stderrors.Is(err, New(ValidationError, "")))
}

func TestAppError_As(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewCircuitOpenError("provider unavailable"))

	var appErr *AppError
	assert.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, CircuitOpenError, appErr.Type)
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	err := NewNotFoundError("queue entry not found")
	assert.Equal(t, "NOT_FOUND: queue entry not found", err.Error())

	wrapped := NewInternalError("failed to count entries", fmt.Errorf("connection reset"))
	assert.Equal(t, "INTERNAL: failed to count entries: connection reset", wrapped.Error())
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	base := NewConflictError("server already has a patient in progress").
		WithCode(CodeServerBusy).
		WithDetail("entry_id", "e-1")
	err := fmt.Errorf("call next: %w", base)

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeConflict, appErr.Type)
	assert.Equal(t, CodeServerBusy, appErr.Code)
	assert.Equal(t, "e-1", appErr.Details["entry_id"])

	assert.True(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(err, ErrorTypeNotFound))
	assert.True(t, HasCode(err, CodeServerBusy))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeServerBusy))
}

func TestConstructors_DefaultCodes(t *testing.T) {
	assert.Equal(t, "VALIDATION", NewValidationError("x").Code)
	assert.Equal(t, CodeRoleRequired, NewForbiddenError("x").Code)
	assert.Equal(t, CodeGenerationFailed, NewGenerationFailedError("x", nil).Code)
	assert.Equal(t, ErrorTypeGenerationFailed, NewGenerationFailedError("x", nil).Type)
}

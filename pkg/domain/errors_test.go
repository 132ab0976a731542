package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestError_Codes(t *testing.T) {
	cause := &domain.ValidationError{Path: "data.age", Reason: "must be >= 0"}
	err := domain.NewValidationError("data.age", cause)

	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Equal(t, "data.age", err.Path)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(wrapped))
	assert.Equal(t, domain.ErrorCode(""), domain.CodeOf(errors.New("plain")))
}

func TestError_DisposedMatchesSentinel(t *testing.T) {
	err := domain.NewDisposedError()
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.Equal(t, domain.CodeDisposed, domain.CodeOf(err))

	other := domain.NewExecutionError("boom", nil)
	assert.NotErrorIs(t, other, domain.ErrDisposed)
}

func TestValidationPath(t *testing.T) {
	path, ok := domain.ValidationPath(fmt.Errorf("wrap: %w", &domain.ValidationError{Path: "data.name", Reason: "required"}))
	assert.True(t, ok)
	assert.Equal(t, "data.name", path)

	_, ok = domain.ValidationPath(errors.New("nope"))
	assert.False(t, ok)
}

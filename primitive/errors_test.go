package primitive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(ErrTransient))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(ErrPermanent))
}

func TestIsTerminalOnlyValidation(t *testing.T) {
	assert.True(t, IsTerminal(ErrValidation))
	assert.False(t, IsTerminal(ErrTransient))
	assert.False(t, IsTerminal(ErrPermanent))
}

func TestTriggersCompensation(t *testing.T) {
	assert.True(t, TriggersCompensation(ErrTransient))
	assert.True(t, TriggersCompensation(ErrPermanent))
	assert.True(t, TriggersCompensation(ErrTimeout))
	assert.False(t, TriggersCompensation(ErrValidation))
	assert.False(t, TriggersCompensation(ErrCircuitOpen))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, "validation", Classify(ErrValidation))
	assert.Equal(t, "timeout", Classify(ErrTimeout))
	assert.Equal(t, "transient", Classify(ErrTransient))
	assert.Equal(t, "permanent", Classify(ErrPermanent))
	assert.Equal(t, "circuit_open", Classify(ErrCircuitOpen))
	assert.Equal(t, "strategy", Classify(ErrStrategy))
	assert.Equal(t, "unknown", Classify(errors.New("mystery")))
}

func TestFrameworkErrorFormatting(t *testing.T) {
	err := NewFrameworkError("retry.Execute", "retry", ErrTransient)
	assert.Contains(t, err.Error(), "retry.Execute")
	assert.ErrorIs(t, err, ErrTransient)

	withID := &FrameworkError{Op: "cache.Execute", Kind: "cache", ID: "pricing", Err: ErrPermanent}
	assert.Contains(t, withID.Error(), "pricing")
}

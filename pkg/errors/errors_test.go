package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentErrorWrapping(t *testing.T) {
	err := NewError("process payment", "card_rail", ErrNotConfigured)

	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "process payment")
	assert.Contains(t, err.Error(), "card_rail")

	var pe *PaymentError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, "card_rail", pe.Processor)
}

func TestPaymentErrorWithoutProcessor(t *testing.T) {
	err := NewError("select", "", ErrNoBankAccount)
	assert.NotContains(t, err.Error(), "on ")
	assert.ErrorIs(t, err, ErrNoBankAccount)
}

func TestUnavailable(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Unavailable("ach_rail", cause)

	assert.Contains(t, err.Error(), "ach_rail")
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Unavailable("card_rail", stderrors.New("timeout"))))

	// Wrapping does not hide retryability.
	wrapped := fmt.Errorf("attempt 1: %w", Unavailable("card_rail", stderrors.New("timeout")))
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, IsRetryable(NewError("process", "card_rail", Unavailable("card_rail", stderrors.New("reset")))))

	// Declines and configuration problems are never retryable.
	assert.False(t, IsRetryable(ErrNotConfigured))
	assert.False(t, IsRetryable(ErrNoBankAccount))
	assert.False(t, IsRetryable(ErrInvalidAmount))
	assert.False(t, IsRetryable(NewError("process", "card_rail", ErrConfigNotFound)))
	assert.False(t, IsRetryable(nil))
}

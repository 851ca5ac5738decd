package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_NilStaysNil(t *testing.T) {
	assert.NoError(t, Step("fund", nil))
}

func TestStep_WrapsAndUnwraps(t *testing.T) {
	cause := fmt.Errorf("%w: need 400", ErrInsufficientPayerFunds)
	err := Step("fund", cause)

	require.Error(t, err)
	assert.Equal(t, "fund: insufficient payer funds: need 400", err.Error())
	assert.True(t, errors.Is(err, ErrInsufficientPayerFunds))

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "fund", se.Op)
}

func TestStep_DoesNotMatchOtherSentinels(t *testing.T) {
	err := Step("realloc", ErrResizeRejected)
	assert.False(t, errors.Is(err, ErrArithmeticOverflow))
	assert.False(t, errors.Is(err, ErrLedgerTransferFailed))
}

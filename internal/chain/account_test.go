package chain

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(dataLen int) *Account {
	return NewAccount(solana.NewWallet().PublicKey(), solana.SystemProgramID, 1000, bytes.Repeat([]byte{7}, dataLen))
}

func TestRealloc_GrowZeroFills(t *testing.T) {
	a := newTestAccount(4)

	require.NoError(t, a.Realloc(8))
	assert.Equal(t, []byte{7, 7, 7, 7, 0, 0, 0, 0}, a.Data)
	assert.Equal(t, uint64(1000), a.Lamports, "realloc never touches lamports")
}

func TestRealloc_ShrinkThenGrowDoesNotExposeOldTail(t *testing.T) {
	a := newTestAccount(8)

	require.NoError(t, a.Realloc(2))
	assert.Equal(t, []byte{7, 7}, a.Data)

	require.NoError(t, a.Realloc(6))
	assert.Equal(t, []byte{7, 7, 0, 0, 0, 0}, a.Data)
}

func TestRealloc_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		prep   func(a *Account)
		newLen int
	}{
		{name: "negative", newLen: -1},
		{name: "above maximum", newLen: MaxPermittedDataLength + 1},
		{name: "growth above per-unit limit", newLen: MaxPermittedDataIncrease + 11},
		{name: "read-only", prep: func(a *Account) { a.IsWritable = false }, newLen: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccount(10)
			if tt.prep != nil {
				tt.prep(a)
			}
			err := a.Realloc(tt.newLen)
			assert.ErrorIs(t, err, common.ErrResizeRejected)
			assert.Len(t, a.Data, 10)
		})
	}
}

func TestRealloc_GrowthLimitCountsFromUnitStart(t *testing.T) {
	a := newTestAccount(100)
	rt := NewRuntime(testRent, nil)

	err := rt.Execute(context.Background(), []*Account{a}, func(ctx context.Context) error {
		if err := a.Realloc(100 + MaxPermittedDataIncrease); err != nil {
			return err
		}
		// Already at the limit for this unit: shrinking is fine, growing past it is not.
		if err := a.Realloc(50); err != nil {
			return err
		}
		return a.Realloc(101 + MaxPermittedDataIncrease)
	})

	assert.ErrorIs(t, err, common.ErrResizeRejected)
	assert.Len(t, a.Data, 100, "unit of work rolled back")
}

func TestNewProgramAccount(t *testing.T) {
	p := NewProgramAccount(solana.TokenProgramID)

	assert.True(t, p.Executable)
	assert.False(t, p.IsWritable)
	assert.Equal(t, NativeLoaderID, p.Owner)
	assert.Equal(t, solana.TokenProgramID.String(), p.String())
}

package tokenprogram

import (
	"context"
	"math"
	"testing"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/rent"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rt      *chain.Runtime
	caller  solana.PublicKey
	mint    solana.PublicKey
	owner   *chain.Account
	src     *chain.Account
	dst     *chain.Account
	program *chain.Account
}

func newFixture(t *testing.T, srcAmount, dstAmount uint64) *fixture {
	t.Helper()
	mint := solana.NewWallet().PublicKey()
	owner := chain.NewAccount(solana.NewWallet().PublicKey(), solana.SystemProgramID, 1, nil)
	owner.IsSigner = true

	src, err := NewTokenAccount(solana.NewWallet().PublicKey(), mint, owner.Key, srcAmount, 1)
	require.NoError(t, err)
	dst, err := NewTokenAccount(solana.NewWallet().PublicKey(), mint, solana.NewWallet().PublicKey(), dstAmount, 1)
	require.NoError(t, err)

	return &fixture{
		rt:      chain.NewRuntime(rent.Default(), nil, New(nil)),
		caller:  solana.NewWallet().PublicKey(),
		mint:    mint,
		owner:   owner,
		src:     src,
		dst:     dst,
		program: chain.NewProgramAccount(solana.TokenProgramID),
	}
}

func (f *fixture) invoke(t *testing.T, ix solana.Instruction) error {
	t.Helper()
	return f.rt.Invoke(context.Background(), f.caller, ix, []*chain.Account{f.src, f.dst, f.owner, f.program})
}

func (f *fixture) transfer(t *testing.T, from, to *chain.Account, amount uint64) error {
	t.Helper()
	ix, err := token.NewTransferInstruction(amount, from.Key, to.Key, f.owner.Key, nil).ValidateAndBuild()
	require.NoError(t, err)
	return f.invoke(t, ix)
}

func mustBalance(t *testing.T, a *chain.Account) uint64 {
	t.Helper()
	b, err := Balance(a)
	require.NoError(t, err)
	return b
}

func TestNewAccountData_Layout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	data, err := NewAccountData(mint, owner, 42)
	require.NoError(t, err)
	require.Len(t, data, AccountSize)

	// mint, owner and amount sit at fixed offsets.
	assert.Equal(t, mint.Bytes(), data[0:32])
	assert.Equal(t, owner.Bytes(), data[32:64])
	assert.Equal(t, []byte{42, 0, 0, 0, 0, 0, 0, 0}, data[64:72])

	acc, err := DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, token.Initialized, acc.State)
	assert.Nil(t, acc.Delegate)
}

func TestDecodeAccount_WrongLength(t *testing.T) {
	_, err := DecodeAccount(make([]byte, 10))
	assert.ErrorIs(t, err, common.ErrInvalidTokenAccount)
}

func TestTransfer_Moves(t *testing.T) {
	f := newFixture(t, 100, 5)

	require.NoError(t, f.transfer(t, f.src, f.dst, 60))

	assert.Equal(t, uint64(40), mustBalance(t, f.src))
	assert.Equal(t, uint64(65), mustBalance(t, f.dst))
}

func TestTransfer_ToSelfKeepsBalance(t *testing.T) {
	f := newFixture(t, 100, 0)

	require.NoError(t, f.transfer(t, f.src, f.src, 60))
	assert.Equal(t, uint64(100), mustBalance(t, f.src))
}

func TestTransfer_DestinationOverflow(t *testing.T) {
	f := newFixture(t, 100, math.MaxUint64)

	err := f.transfer(t, f.src, f.dst, 1)

	assert.ErrorIs(t, err, common.ErrLedgerTransferFailed)
	assert.ErrorIs(t, err, common.ErrArithmeticOverflow)
	assert.Equal(t, uint64(100), mustBalance(t, f.src))
}

func TestTransfer_UninitializedDestination(t *testing.T) {
	f := newFixture(t, 100, 0)
	f.dst.Data = make([]byte, AccountSize)

	err := f.transfer(t, f.src, f.dst, 1)

	assert.ErrorIs(t, err, common.ErrLedgerTransferFailed)
	assert.ErrorIs(t, err, common.ErrUninitializedAccount)
}

func TestTransfer_AccountNotOwnedByTokenProgram(t *testing.T) {
	f := newFixture(t, 100, 0)
	f.dst.Owner = solana.SystemProgramID

	err := f.transfer(t, f.src, f.dst, 1)

	assert.ErrorIs(t, err, common.ErrInvalidTokenAccount)
	assert.Equal(t, uint64(100), mustBalance(t, f.src))
}

func TestProcess_UnsupportedInstruction(t *testing.T) {
	f := newFixture(t, 100, 0)
	ix, err := token.NewApproveInstruction(10, f.src.Key, f.dst.Key, f.owner.Key, nil).ValidateAndBuild()
	require.NoError(t, err)

	err = f.invoke(t, ix)

	assert.ErrorIs(t, err, common.ErrLedgerTransferFailed)
	assert.ErrorIs(t, err, common.ErrInvalidInstruction)
}

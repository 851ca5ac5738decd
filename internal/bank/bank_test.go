package bank

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/chain/systemprogram"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/rent"
	"github.com/dmitrijs2005/stakecore/internal/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitRent = rent.Rent{LamportsPerByteYear: 1, ExemptionThreshold: 1}

type fixture struct {
	bank  *Bank
	payer *chain.Account
	dest  *chain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, rm, err := store.Open(ctx, filepath.Join(t.TempDir(), "bank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rt := chain.NewRuntime(unitRent, nil, systemprogram.New(nil))
	f := &fixture{
		bank:  New(db, rm, rt, nil),
		payer: chain.NewAccount(solana.NewWallet().PublicKey(), solana.SystemProgramID, 1000, nil),
		dest:  chain.NewAccount(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 500, make([]byte, 10)),
	}
	require.NoError(t, f.bank.Genesis(ctx, chain.NewProgramAccount(solana.SystemProgramID), f.payer, f.dest))
	return f
}

func (f *fixture) request() Request {
	return Request{
		Keys:    []solana.PublicKey{f.payer.Key, f.dest.Key, solana.SystemProgramID},
		Signers: []solana.PublicKey{f.payer.Key},
	}
}

func (f *fixture) lamports(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	a, err := f.bank.Account(context.Background(), key)
	require.NoError(t, err)
	return a.Lamports
}

func transfer(ctx context.Context, rt *chain.Runtime, tx *Tx, from, to solana.PublicKey, lamports uint64) error {
	ix, err := system.NewTransferInstruction(lamports, from, to).ValidateAndBuild()
	if err != nil {
		return err
	}
	return rt.Invoke(ctx, solana.PublicKey{}, ix, tx.Accounts())
}

func TestExecute_PersistsWritableAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.bank.Execute(ctx, f.request(), func(ctx context.Context, tx *Tx) error {
		return transfer(ctx, f.bank.Runtime(), tx, f.payer.Key, f.dest.Key, 400)
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(600), f.lamports(t, f.payer.Key))
	assert.Equal(t, uint64(900), f.lamports(t, f.dest.Key))
}

func TestExecute_HandlerErrorPersistsNothing(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.bank.Execute(context.Background(), f.request(), func(ctx context.Context, tx *Tx) error {
		if err := transfer(ctx, f.bank.Runtime(), tx, f.payer.Key, f.dest.Key, 400); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(1000), f.lamports(t, f.payer.Key))
	assert.Equal(t, uint64(500), f.lamports(t, f.dest.Key))
}

func TestExecute_RentViolationPersistsNothing(t *testing.T) {
	f := newFixture(t)

	err := f.bank.Execute(context.Background(), f.request(), func(ctx context.Context, tx *Tx) error {
		payer := tx.MustAccount(f.payer.Key)
		dest := tx.MustAccount(f.dest.Key)
		payer.Lamports -= 950
		dest.Lamports += 950
		return nil
	})
	require.ErrorIs(t, err, common.ErrNotRentExempt)

	assert.Equal(t, uint64(1000), f.lamports(t, f.payer.Key))
}

func TestExecute_ProgramAccountIsReadOnly(t *testing.T) {
	f := newFixture(t)

	err := f.bank.Execute(context.Background(), f.request(), func(ctx context.Context, tx *Tx) error {
		program := tx.MustAccount(solana.SystemProgramID)
		assert.True(t, program.Executable)
		assert.False(t, program.IsWritable)
		assert.True(t, tx.MustAccount(f.payer.Key).IsSigner)
		assert.False(t, tx.MustAccount(f.dest.Key).IsSigner)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Keys = append(req.Keys, solana.NewWallet().PublicKey())

	called := false
	err := f.bank.Execute(context.Background(), req, func(context.Context, *Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, common.ErrAccountNotFound)
	assert.False(t, called)
}

func TestExecute_SignerOutsideRequest(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Signers = append(req.Signers, solana.NewWallet().PublicKey())

	err := f.bank.Execute(context.Background(), req, func(context.Context, *Tx) error { return nil })
	require.ErrorIs(t, err, common.ErrMissingAccount)
}

func TestExecute_DuplicateKeysLoadOnce(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Keys = append(req.Keys, f.payer.Key)

	err := f.bank.Execute(context.Background(), req, func(ctx context.Context, tx *Tx) error {
		assert.Len(t, tx.Accounts(), 3)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_BeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	b := New(db, store.SQLiteRepositoryManager{}, chain.NewRuntime(unitRent, nil), nil)
	err = b.Execute(context.Background(), Request{}, func(context.Context, *Tx) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.ErrorContains(t, err, "begin tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenesis_RoundTrip(t *testing.T) {
	f := newFixture(t)

	got, err := f.bank.Account(context.Background(), f.dest.Key)
	require.NoError(t, err)

	if diff := cmp.Diff(f.dest, got, cmp.AllowUnexported(chain.Account{})); diff != "" {
		t.Fatalf("account mismatch (-want +got):\n%s", diff)
	}

	all, err := f.bank.Accounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAccount_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.bank.Account(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

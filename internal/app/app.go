// Package app wires config, store, runtime and staking handlers together
// and runs the demo stake/unstake round trip.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/stakecore/internal/bank"
	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/chain/systemprogram"
	"github.com/dmitrijs2005/stakecore/internal/chain/tokenprogram"
	"github.com/dmitrijs2005/stakecore/internal/config"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/dmitrijs2005/stakecore/internal/staking"
	"github.com/dmitrijs2005/stakecore/internal/store"
	"github.com/gagliardetto/solana-go"
)

// StakerLamports is the native balance the demo staker starts with.
const StakerLamports = 1_000_000_000

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	bank    *bank.Bank
	pool    *staking.Pool
	handler *staking.Handler

	staker       solana.PublicKey
	stakerTokens solana.PublicKey
}

// NewApp opens the store and builds the runtime. Logs go to w as JSON.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(w, c.LogLevel)

	programID, err := c.Program()
	if err != nil {
		return nil, err
	}

	db, rm, err := store.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rt := chain.NewRuntime(c.Rent(), logger, systemprogram.New(logger), tokenprogram.New(logger))

	demo, err := demoKeys(programID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	pool, err := staking.NewPool(programID, demo.mint, demo.vault)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		bank:         bank.New(db, rm, rt, logger),
		pool:         pool,
		handler:      staking.New(pool, rt, logger),
		staker:       demo.staker,
		stakerTokens: demo.stakerTokens,
	}, nil
}

type keys struct {
	mint, vault, staker, stakerTokens solana.PublicKey
}

// demoKeys derives stable addresses so repeated runs against one database
// reuse the same accounts.
func demoKeys(programID solana.PublicKey) (keys, error) {
	var k keys
	for _, d := range []struct {
		dst  *solana.PublicKey
		seed string
	}{
		{&k.mint, "demo-mint"},
		{&k.vault, "demo-vault"},
		{&k.staker, "demo-staker"},
		{&k.stakerTokens, "demo-staker-tokens"},
	} {
		addr, _, err := chain.DeriveAuthority(programID, []byte(d.seed))
		if err != nil {
			return keys{}, fmt.Errorf("derive %s: %w", d.seed, err)
		}
		*d.dst = addr
	}
	return k, nil
}

// Bootstrap writes the built-in program accounts and a freshly funded demo
// pool, overwriting any previous state of those accounts.
func (app *App) Bootstrap(ctx context.Context) error {
	r := app.config.Rent()
	tokenRent := r.MinimumBalance(tokenprogram.AccountSize)

	stakerTokens, err := tokenprogram.NewTokenAccount(app.stakerTokens, app.pool.Mint, app.staker, app.config.StakeAmount, tokenRent)
	if err != nil {
		return err
	}
	vault, err := tokenprogram.NewTokenAccount(app.pool.Vault, app.pool.Mint, app.pool.VaultAuthority, 0, tokenRent)
	if err != nil {
		return err
	}

	return app.bank.Genesis(ctx,
		chain.NewProgramAccount(solana.SystemProgramID),
		chain.NewProgramAccount(solana.TokenProgramID),
		chain.NewAccount(app.staker, solana.SystemProgramID, StakerLamports, nil),
		stakerTokens,
		vault,
		chain.NewAccount(app.pool.VaultAuthority, solana.SystemProgramID, 0, nil),
		chain.NewAccount(app.pool.Record, app.pool.ProgramID, r.MinimumBalance(0), nil),
	)
}

// Stake runs one stake instruction for the demo staker.
func (app *App) Stake(ctx context.Context, amount uint64) error {
	return app.bank.Execute(ctx, app.pool.Request(app.staker, app.stakerTokens), func(ctx context.Context, tx *bank.Tx) error {
		acc, err := app.pool.Accounts(tx, app.staker, app.stakerTokens)
		if err != nil {
			return err
		}
		return app.handler.Stake(ctx, acc, amount)
	})
}

// Unstake runs one unstake instruction for the demo staker.
func (app *App) Unstake(ctx context.Context) (uint64, error) {
	var amount uint64
	err := app.bank.Execute(ctx, app.pool.Request(app.staker, app.stakerTokens), func(ctx context.Context, tx *bank.Tx) error {
		acc, err := app.pool.Accounts(tx, app.staker, app.stakerTokens)
		if err != nil {
			return err
		}
		amount, err = app.handler.Unstake(ctx, acc)
		return err
	})
	return amount, err
}

// Snapshot is the committed state the demo reports after each step.
type Snapshot struct {
	StakerLamports uint64
	StakerTokens   uint64
	VaultTokens    uint64
	Staked         uint64
	RecordLen      int
	RecordLamports uint64
}

func (app *App) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot

	staker, err := app.bank.Account(ctx, app.staker)
	if err != nil {
		return s, err
	}
	stakerTokens, err := app.bank.Account(ctx, app.stakerTokens)
	if err != nil {
		return s, err
	}
	vault, err := app.bank.Account(ctx, app.pool.Vault)
	if err != nil {
		return s, err
	}
	record, err := app.bank.Account(ctx, app.pool.Record)
	if err != nil {
		return s, err
	}

	s.StakerLamports = staker.Lamports
	if s.StakerTokens, err = tokenprogram.Balance(stakerTokens); err != nil {
		return s, err
	}
	if s.VaultTokens, err = tokenprogram.Balance(vault); err != nil {
		return s, err
	}
	if s.Staked, err = staking.StakedBy(record.Data, app.staker); err != nil {
		return s, err
	}
	s.RecordLen = len(record.Data)
	s.RecordLamports = record.Lamports
	return s, nil
}

func (app *App) report(ctx context.Context, step string) error {
	s, err := app.Snapshot(ctx)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, step,
		"staker_lamports", s.StakerLamports, "staker_tokens", s.StakerTokens,
		"vault_tokens", s.VaultTokens, "staked", s.Staked,
		"record_len", s.RecordLen, "record_lamports", s.RecordLamports)
	return nil
}

// Run bootstraps the pool and performs a stake followed by an unstake.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "dsn_dialect", string(store.DialectFor(app.config.DatabaseDSN)))

	if err := app.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := app.report(ctx, "pool ready"); err != nil {
		return err
	}

	if err := app.Stake(ctx, app.config.StakeAmount); err != nil {
		return err
	}
	if err := app.report(ctx, "after stake"); err != nil {
		return err
	}

	if _, err := app.Unstake(ctx); err != nil {
		return err
	}
	return app.report(ctx, "after unstake")
}

func (app *App) Close() error {
	return app.db.Close()
}

// Package bank is the transactional boundary around the runtime. A unit of
// work loads its accounts inside one SQL transaction, runs under
// chain.Runtime.Execute and writes the writable accounts back only when both
// the runtime checks and the commit succeed.
package bank

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/dbx"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/dmitrijs2005/stakecore/internal/store"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Request names the accounts a unit of work touches and which of them signed.
// Every signer must also appear in Keys.
type Request struct {
	Keys    []solana.PublicKey
	Signers []solana.PublicKey
}

// Tx gives a unit of work access to its loaded account handles.
type Tx struct {
	ID       uuid.UUID
	accounts map[solana.PublicKey]*chain.Account
	ordered  []*chain.Account
}

// Account returns the handle loaded for key.
func (t *Tx) Account(key solana.PublicKey) (*chain.Account, error) {
	a, ok := t.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in request", common.ErrMissingAccount, key)
	}
	return a, nil
}

// MustAccount is Account for keys the caller put in the request itself.
func (t *Tx) MustAccount(key solana.PublicKey) *chain.Account {
	a, err := t.Account(key)
	if err != nil {
		panic(err)
	}
	return a
}

// Accounts returns the handles in request order.
func (t *Tx) Accounts() []*chain.Account {
	return t.ordered
}

type Bank struct {
	db          *sql.DB
	repomanager store.RepositoryManager
	runtime     *chain.Runtime
	logger      logging.Logger
}

func New(db *sql.DB, rm store.RepositoryManager, rt *chain.Runtime, logger logging.Logger) *Bank {
	return &Bank{
		db:          db,
		repomanager: rm,
		runtime:     rt,
		logger:      logging.OrNop(logger),
	}
}

func (b *Bank) Runtime() *chain.Runtime {
	return b.runtime
}

// Execute runs fn as one unit of work over the accounts named in req.
// On any error nothing is persisted and the error is returned as is.
func (b *Bank) Execute(ctx context.Context, req Request, fn func(ctx context.Context, tx *Tx) error) error {
	id := uuid.New()
	log := b.logger.With("uow_id", id.String())

	err := dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, dbtx dbx.DBTX) error {
		repo := b.repomanager.Accounts(dbtx)

		tx := &Tx{ID: id, accounts: make(map[solana.PublicKey]*chain.Account, len(req.Keys))}
		for _, key := range req.Keys {
			if _, dup := tx.accounts[key]; dup {
				continue
			}
			m, err := repo.Get(ctx, key.String())
			if err != nil {
				return fmt.Errorf("load account %s: %w", key, err)
			}
			a, err := toHandle(m)
			if err != nil {
				return err
			}
			tx.accounts[key] = a
			tx.ordered = append(tx.ordered, a)
		}
		for _, key := range req.Signers {
			a, err := tx.Account(key)
			if err != nil {
				return fmt.Errorf("signer: %w", err)
			}
			a.IsSigner = true
		}

		log.Debug(ctx, "unit of work started", "accounts", len(tx.ordered))

		if err := b.runtime.Execute(ctx, tx.ordered, func(ctx context.Context) error {
			return fn(ctx, tx)
		}); err != nil {
			return err
		}

		for _, a := range tx.ordered {
			if !a.IsWritable {
				continue
			}
			if err := repo.Upsert(ctx, toModel(a)); err != nil {
				return fmt.Errorf("store account %s: %w", a.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error(ctx, "unit of work failed", "error", err)
		return err
	}

	log.Info(ctx, "unit of work committed")
	return nil
}

// Genesis writes accounts as given, bypassing the runtime checks. It is
// meant for bootstrapping program accounts and fixtures.
func (b *Bank) Genesis(ctx context.Context, accounts ...*chain.Account) error {
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := b.repomanager.Accounts(tx)
		for _, a := range accounts {
			if err := repo.Upsert(ctx, toModel(a)); err != nil {
				return fmt.Errorf("genesis %s: %w", a.Key, err)
			}
			b.logger.Debug(ctx, "genesis account", "account", a.Key.String(), "lamports", a.Lamports)
		}
		return nil
	})
}

// Account reads the committed state of key.
func (b *Bank) Account(ctx context.Context, key solana.PublicKey) (*chain.Account, error) {
	m, err := b.repomanager.Accounts(b.db).Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	return toHandle(m)
}

// Accounts lists every committed account ordered by address.
func (b *Bank) Accounts(ctx context.Context) ([]*chain.Account, error) {
	list, err := b.repomanager.Accounts(b.db).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*chain.Account, 0, len(list))
	for _, m := range list {
		a, err := toHandle(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

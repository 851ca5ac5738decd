// Package staking holds the stake and unstake instruction handlers. They
// move tokens with tokentransfer and keep the stake record rent-exempt with
// realloc; neither does any reward or schedule math.
//
// Handlers mutate handles in place and leave partial state behind on error,
// so they are meant to run inside a unit of work (bank.Bank.Execute or
// chain.Runtime.Execute) that rolls back.
package staking

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/dmitrijs2005/stakecore/internal/realloc"
	"github.com/dmitrijs2005/stakecore/internal/tokentransfer"
	"github.com/gagliardetto/solana-go"
)

// Runtime is what the handlers need from the hosting runtime.
type Runtime interface {
	realloc.Runtime
	tokentransfer.Invoker
}

// Accounts are the handles one instruction works on. Staker signs and pays
// for record growth.
type Accounts struct {
	Staker         *chain.Account
	StakerTokens   *chain.Account
	Vault          *chain.Account
	VaultAuthority *chain.Account
	Record         *chain.Account
	SystemProgram  *chain.Account
	TokenProgram   *chain.Account
}

type Handler struct {
	pool       *Pool
	rebalancer *realloc.Rebalancer
	mover      *tokentransfer.Mover
	logger     logging.Logger
}

func New(pool *Pool, rt Runtime, logger logging.Logger) *Handler {
	logger = logging.OrNop(logger)
	return &Handler{
		pool:       pool,
		rebalancer: realloc.New(rt, pool.ProgramID, logger),
		mover:      tokentransfer.New(rt, pool.ProgramID, logger),
		logger:     logger.With("pool", pool.Mint.String()),
	}
}

// Stake moves amount tokens from the staker into the vault and appends an
// entry to the record, growing it by RecordEntrySize.
func (h *Handler) Stake(ctx context.Context, acc Accounts, amount uint64) error {
	if err := h.checkPool(acc); err != nil {
		return err
	}
	if _, err := DecodeRecord(acc.Record.Data); err != nil {
		return err
	}
	entry, err := encodeEntry(Entry{Staker: acc.Staker.Key, Amount: amount})
	if err != nil {
		return err
	}

	if err := h.mover.Transfer(ctx, acc.StakerTokens, acc.Staker, acc.Vault, acc.TokenProgram, amount); err != nil {
		return fmt.Errorf("stake: %w", err)
	}

	oldLen := len(acc.Record.Data)
	if err := h.rebalancer.Resize(ctx, acc.Record, oldLen+RecordEntrySize, acc.Staker, acc.SystemProgram); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	copy(acc.Record.Data[oldLen:], entry)

	h.logger.Info(ctx, "staked", "staker", acc.Staker.Key.String(), "amount", amount,
		"entries", len(acc.Record.Data)/RecordEntrySize)
	return nil
}

// Unstake returns the staker's oldest entry from the vault, signed by the
// vault authority proof, and shrinks the record by one entry. It reports the
// amount returned.
func (h *Handler) Unstake(ctx context.Context, acc Accounts) (uint64, error) {
	if err := h.checkPool(acc); err != nil {
		return 0, err
	}
	entries, err := DecodeRecord(acc.Record.Data)
	if err != nil {
		return 0, err
	}
	idx := indexOf(entries, acc.Staker.Key)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", common.ErrStakeNotFound, acc.Staker.Key)
	}
	amount := entries[idx].Amount

	if err := h.mover.TransferWithProof(ctx, acc.Vault, acc.VaultAuthority, acc.StakerTokens, acc.TokenProgram,
		h.pool.AuthorityProof(), amount); err != nil {
		return 0, fmt.Errorf("unstake: %w", err)
	}

	// swap-remove: the last entry takes the freed slot, then the tail is cut.
	data := acc.Record.Data
	last := len(entries) - 1
	copy(data[idx*RecordEntrySize:(idx+1)*RecordEntrySize], data[last*RecordEntrySize:])
	if err := h.rebalancer.Resize(ctx, acc.Record, last*RecordEntrySize, acc.Staker, acc.SystemProgram); err != nil {
		return 0, fmt.Errorf("unstake: %w", err)
	}

	h.logger.Info(ctx, "unstaked", "staker", acc.Staker.Key.String(), "amount", amount, "entries", last)
	return amount, nil
}

func (h *Handler) checkPool(acc Accounts) error {
	switch {
	case !acc.Vault.Key.Equals(h.pool.Vault):
		return fmt.Errorf("%w: vault %s", common.ErrPoolMismatch, acc.Vault.Key)
	case !acc.VaultAuthority.Key.Equals(h.pool.VaultAuthority):
		return fmt.Errorf("%w: vault authority %s", common.ErrPoolMismatch, acc.VaultAuthority.Key)
	case !acc.Record.Key.Equals(h.pool.Record):
		return fmt.Errorf("%w: record %s", common.ErrPoolMismatch, acc.Record.Key)
	case !acc.Record.Owner.Equals(h.pool.ProgramID):
		return fmt.Errorf("%w: record owned by %s", common.ErrPoolMismatch, acc.Record.Owner)
	}
	return nil
}

func indexOf(entries []Entry, staker solana.PublicKey) int {
	for i, e := range entries {
		if e.Staker.Equals(staker) {
			return i
		}
	}
	return -1
}

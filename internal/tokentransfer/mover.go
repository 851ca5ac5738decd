// Package tokentransfer moves token balances through the token ledger under
// a delegated authority. The authority either signed the transaction or is a
// program-derived address backed by a chain.AuthorityProof.
package tokentransfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// StepTransfer names the ledger call in *common.StepError.
const StepTransfer = "token transfer"

// Invoker issues cross-program invocations.
type Invoker interface {
	Invoke(ctx context.Context, caller solana.PublicKey, ix solana.Instruction, accounts []*chain.Account, proofs ...chain.AuthorityProof) error
}

type Mover struct {
	rt        Invoker
	programID solana.PublicKey
	logger    logging.Logger
}

// New returns a Mover invoking the token ledger on behalf of programID.
// Proofs passed to TransferWithProof are derived under programID.
func New(rt Invoker, programID solana.PublicKey, logger logging.Logger) *Mover {
	return &Mover{rt: rt, programID: programID, logger: logging.OrNop(logger)}
}

// Transfer moves amount tokens from from to to. authority must have signed
// the transaction.
func (m *Mover) Transfer(ctx context.Context, from, authority, to, tokenProgram *chain.Account, amount uint64) error {
	return m.transfer(ctx, from, authority, to, tokenProgram, amount)
}

// TransferWithProof moves amount tokens from from to to under a
// program-derived authority. proof is forwarded untouched; the runtime
// re-derives it and rejects the call if it does not yield authority.
func (m *Mover) TransferWithProof(ctx context.Context, from, authority, to, tokenProgram *chain.Account, proof chain.AuthorityProof, amount uint64) error {
	return m.transfer(ctx, from, authority, to, tokenProgram, amount, proof)
}

func (m *Mover) transfer(ctx context.Context, from, authority, to, tokenProgram *chain.Account, amount uint64, proofs ...chain.AuthorityProof) error {
	ix, err := token.NewTransferInstruction(amount, from.Key, to.Key, authority.Key, nil).ValidateAndBuild()
	if err != nil {
		return common.Step(StepTransfer, ledgerFailed(fmt.Errorf("%w: %v", common.ErrInvalidInstruction, err)))
	}

	accounts := []*chain.Account{from, to, authority, tokenProgram}
	if err := m.rt.Invoke(ctx, m.programID, ix, accounts, proofs...); err != nil {
		m.logger.Error(ctx, "token transfer failed",
			"from", from.Key, "to", to.Key, "authority", authority.Key, "amount", amount,
			"signed_by_proof", len(proofs) > 0, "error", err)
		return common.Step(StepTransfer, ledgerFailed(err))
	}

	m.logger.Info(ctx, "tokens moved",
		"from", from.Key, "to", to.Key, "authority", authority.Key, "amount", amount,
		"signed_by_proof", len(proofs) > 0)
	return nil
}

func ledgerFailed(err error) error {
	if errors.Is(err, common.ErrLedgerTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrLedgerTransferFailed, err)
}

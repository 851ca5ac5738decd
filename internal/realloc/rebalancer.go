// Package realloc resizes a program-owned account while keeping it exactly
// rent-exempt. The balance is settled first (phase one) and the buffer is
// resized second (phase two), both against the same target length.
package realloc

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/dmitrijs2005/stakecore/internal/rent"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// Sub-step names carried by *common.StepError.
const (
	StepFund    = "fund"
	StepRefund  = "refund"
	StepRealloc = "realloc"
)

// Runtime is the part of the hosting runtime the rebalancer needs.
type Runtime interface {
	Rent() rent.Rent
	Invoke(ctx context.Context, caller solana.PublicKey, ix solana.Instruction, accounts []*chain.Account, proofs ...chain.AuthorityProof) error
}

// Direction of the balance movement a resize needs.
type Direction int

const (
	Unchanged Direction = iota
	Fund                // payer tops the account up
	Refund              // surplus goes back to the payer
)

func (d Direction) String() string {
	switch d {
	case Fund:
		return "fund"
	case Refund:
		return "refund"
	default:
		return "unchanged"
	}
}

// Plan describes what Resize will do, without doing it.
type Plan struct {
	NewLength int
	Current   uint64
	Required  uint64
	Direction Direction
	Delta     uint64
}

type Rebalancer struct {
	rt        Runtime
	programID solana.PublicKey
	logger    logging.Logger
}

// New returns a Rebalancer invoking the system program on behalf of programID.
func New(rt Runtime, programID solana.PublicKey, logger logging.Logger) *Rebalancer {
	return &Rebalancer{rt: rt, programID: programID, logger: logging.OrNop(logger)}
}

// Plan computes the rent-exempt minimum for newLength and how the account's
// current balance must move to reach it.
func (r *Rebalancer) Plan(account *chain.Account, newLength int) (Plan, error) {
	if newLength < 0 {
		return Plan{}, fmt.Errorf("%w: negative length %d", common.ErrResizeRejected, newLength)
	}

	p := Plan{
		NewLength: newLength,
		Current:   account.Lamports,
		Required:  r.rt.Rent().MinimumBalance(uint64(newLength)),
	}
	switch {
	case p.Required > p.Current:
		p.Direction = Fund
		p.Delta = p.Required - p.Current
	case p.Required < p.Current:
		p.Direction = Refund
		p.Delta = p.Current - p.Required
	}
	return p, nil
}

// Resize brings account's balance to exactly the rent-exempt minimum for
// newLength, funding a shortfall from payer through the system program or
// returning a surplus to payer, and then resizes account's data to newLength.
//
// Resize performs no recovery of its own: a failure after phase one leaves
// the balance moved, and the enclosing unit of work is expected to roll back.
func (r *Rebalancer) Resize(ctx context.Context, account *chain.Account, newLength int, payer, systemProgram *chain.Account) error {
	plan, err := r.Plan(account, newLength)
	if err != nil {
		return common.Step(StepRealloc, err)
	}

	log := r.logger.With("account", account.Key, "payer", payer.Key)
	log.Debug(ctx, "resize planned",
		"direction", plan.Direction.String(), "current", plan.Current, "required", plan.Required,
		"delta", plan.Delta, "old_len", len(account.Data), "new_len", newLength)

	if err := r.commitBalance(ctx, plan, account, payer, systemProgram); err != nil {
		log.Error(ctx, "resize balance phase failed", "error", err)
		return err
	}

	if err := account.Realloc(newLength); err != nil {
		log.Error(ctx, "resize size phase failed", "error", err)
		return common.Step(StepRealloc, err)
	}

	log.Info(ctx, "account resized", "new_len", newLength, "lamports", account.Lamports)
	return nil
}

func (r *Rebalancer) commitBalance(ctx context.Context, plan Plan, account, payer, systemProgram *chain.Account) error {
	switch plan.Direction {
	case Fund:
		ix, err := system.NewTransferInstruction(plan.Delta, payer.Key, account.Key).ValidateAndBuild()
		if err != nil {
			return common.Step(StepFund, fmt.Errorf("%w: %v", common.ErrInvalidInstruction, err))
		}
		accounts := []*chain.Account{payer, account, systemProgram}
		return common.Step(StepFund, r.rt.Invoke(ctx, r.programID, ix, accounts))

	case Refund:
		// The account is owned by the calling program, so its balance is
		// debited in place. The credit reads payer after the debit, which
		// keeps payer == account balanced; on overflow the debit is undone.
		account.Lamports = plan.Required
		credited, carry := bits.Add64(payer.Lamports, plan.Delta, 0)
		if carry != 0 {
			account.Lamports = plan.Current
			return common.Step(StepRefund, fmt.Errorf("%w: payer %s holds %d, refund %d",
				common.ErrArithmeticOverflow, payer.Key, payer.Lamports, plan.Delta))
		}
		payer.Lamports = credited
	}
	return nil
}

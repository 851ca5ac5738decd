// Package systemprogram is the runtime's native balance-transfer service.
package systemprogram

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

type Program struct {
	logger logging.Logger
}

func New(logger logging.Logger) *Program {
	return &Program{logger: logging.OrNop(logger)}
}

func (p *Program) ProgramID() solana.PublicKey {
	return solana.SystemProgramID
}

func (p *Program) Process(ctx context.Context, inv *chain.Invocation) error {
	ix, err := system.DecodeInstruction(inv.Metas, inv.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInstruction, err)
	}

	switch impl := ix.Impl.(type) {
	case *system.Transfer:
		return p.transfer(ctx, inv, impl)
	default:
		return fmt.Errorf("%w: unsupported system instruction %T", common.ErrInvalidInstruction, impl)
	}
}

// transfer moves lamports from account 0 to account 1. The source must sign
// and may not be left with a non-zero balance below its rent-exempt minimum.
func (p *Program) transfer(ctx context.Context, inv *chain.Invocation, t *system.Transfer) error {
	if t.Lamports == nil {
		return fmt.Errorf("%w: transfer without amount", common.ErrInvalidInstruction)
	}
	amount := *t.Lamports

	from, err := inv.Account(0)
	if err != nil {
		return err
	}
	to, err := inv.Account(1)
	if err != nil {
		return err
	}
	if !inv.IsSigner(0) {
		return fmt.Errorf("%w: %s", common.ErrMissingRequiredSignature, from.Key)
	}

	if from.Lamports < amount {
		return fmt.Errorf("%w: %s holds %d, transfer needs %d", common.ErrInsufficientPayerFunds, from.Key, from.Lamports, amount)
	}
	remaining := from.Lamports - amount
	if remaining != 0 && !inv.Rent.IsExempt(remaining, uint64(len(from.Data))) {
		return fmt.Errorf("%w: %s would keep %d, below rent-exempt minimum %d", common.ErrInsufficientPayerFunds,
			from.Key, remaining, inv.Rent.MinimumBalance(uint64(len(from.Data))))
	}

	if from == to {
		return nil
	}

	credited, carry := bits.Add64(to.Lamports, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: crediting %d to %s", common.ErrArithmeticOverflow, amount, to.Key)
	}

	from.Lamports = remaining
	to.Lamports = credited

	p.logger.Debug(ctx, "lamports transferred", "from", from.Key, "to", to.Key, "lamports", amount)
	return nil
}

// Package tokenprogram is the runtime's token-ledger service. It keeps
// token balances in token-account data and executes transfers under the
// owner's or a delegate's authority.
package tokenprogram

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

type Program struct {
	logger logging.Logger
}

func New(logger logging.Logger) *Program {
	return &Program{logger: logging.OrNop(logger)}
}

func (p *Program) ProgramID() solana.PublicKey {
	return solana.TokenProgramID
}

func (p *Program) Process(ctx context.Context, inv *chain.Invocation) error {
	ix, err := token.DecodeInstruction(inv.Metas, inv.Data)
	if err != nil {
		return rejected(fmt.Errorf("%w: %v", common.ErrInvalidInstruction, err))
	}

	switch impl := ix.Impl.(type) {
	case *token.Transfer:
		return p.transfer(ctx, inv, impl)
	default:
		return rejected(fmt.Errorf("%w: unsupported token instruction %T", common.ErrInvalidInstruction, impl))
	}
}

func rejected(cause error) error {
	return fmt.Errorf("%w: %w", common.ErrLedgerTransferFailed, cause)
}

// transfer moves tokens from account 0 to account 1 under the authority of
// account 2, which must be the source owner or its delegate and must sign.
func (p *Program) transfer(ctx context.Context, inv *chain.Invocation, t *token.Transfer) error {
	if t.Amount == nil {
		return rejected(fmt.Errorf("%w: transfer without amount", common.ErrInvalidInstruction))
	}
	amount := *t.Amount

	src, err := inv.Account(0)
	if err != nil {
		return rejected(err)
	}
	dst, err := inv.Account(1)
	if err != nil {
		return rejected(err)
	}
	authority, err := inv.Account(2)
	if err != nil {
		return rejected(err)
	}

	srcState, err := p.load(src)
	if err != nil {
		return rejected(err)
	}
	dstState, err := p.load(dst)
	if err != nil {
		return rejected(err)
	}
	if !srcState.Mint.Equals(dstState.Mint) {
		return rejected(fmt.Errorf("%w: %s vs %s", common.ErrMintMismatch, srcState.Mint, dstState.Mint))
	}

	if !inv.IsSigner(2) {
		return rejected(fmt.Errorf("%w: %s", common.ErrMissingRequiredSignature, authority.Key))
	}

	byDelegate := false
	switch {
	case authority.Key.Equals(srcState.Owner):
	case srcState.Delegate != nil && authority.Key.Equals(*srcState.Delegate):
		if srcState.DelegatedAmount < amount {
			return rejected(fmt.Errorf("%w: allowance %d, transfer %d", common.ErrDelegateAllowanceLow, srcState.DelegatedAmount, amount))
		}
		byDelegate = true
	default:
		return rejected(fmt.Errorf("%w: %s", common.ErrOwnerMismatch, authority.Key))
	}

	if srcState.Amount < amount {
		return rejected(fmt.Errorf("%w: %s holds %d, transfer needs %d", common.ErrInsufficientTokens, src.Key, srcState.Amount, amount))
	}

	if byDelegate {
		srcState.DelegatedAmount -= amount
		if srcState.DelegatedAmount == 0 {
			srcState.Delegate = nil
		}
	}

	if src == dst {
		if err := p.store(src, srcState); err != nil {
			return rejected(err)
		}
		return nil
	}

	credited, carry := bits.Add64(dstState.Amount, amount, 0)
	if carry != 0 {
		return rejected(fmt.Errorf("%w: crediting %d tokens to %s", common.ErrArithmeticOverflow, amount, dst.Key))
	}
	srcState.Amount -= amount
	dstState.Amount = credited

	if err := p.store(src, srcState); err != nil {
		return rejected(err)
	}
	if err := p.store(dst, dstState); err != nil {
		return rejected(err)
	}

	p.logger.Debug(ctx, "tokens transferred", "from", src.Key, "to", dst.Key, "authority", authority.Key, "amount", amount)
	return nil
}

func (p *Program) load(a *chain.Account) (*token.Account, error) {
	if !a.Owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("%w: %s is owned by %s", common.ErrInvalidTokenAccount, a.Key, a.Owner)
	}
	state, err := DecodeAccount(a.Data)
	if err != nil {
		return nil, err
	}
	switch state.State {
	case token.Uninitialized:
		return nil, fmt.Errorf("%w: %s", common.ErrUninitializedAccount, a.Key)
	case token.Frozen:
		return nil, fmt.Errorf("%w: %s", common.ErrAccountFrozen, a.Key)
	}
	return state, nil
}

func (p *Program) store(a *chain.Account, state *token.Account) error {
	data, err := EncodeAccount(state)
	if err != nil {
		return err
	}
	copy(a.Data, data)
	return nil
}

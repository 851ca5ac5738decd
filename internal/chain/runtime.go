// Package chain models the hosting runtime the staking primitives call into:
// account handles, cross-program invocation with signer proofs, units of work
// with rollback, and the rent sysvar.
package chain

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/logging"
	"github.com/dmitrijs2005/stakecore/internal/rent"
	"github.com/gagliardetto/solana-go"
)

// Processor executes the instructions addressed to one program.
type Processor interface {
	ProgramID() solana.PublicKey
	Process(ctx context.Context, inv *Invocation) error
}

// Invocation is what a processor sees: the instruction data and the
// resolved account handles, in instruction order.
type Invocation struct {
	ProgramID solana.PublicKey
	Caller    solana.PublicKey
	Metas     []*solana.AccountMeta
	Accounts  []*Account
	Data      []byte
	Rent      rent.Rent

	derived map[solana.PublicKey]struct{}
}

// Account returns the i-th instruction account.
func (inv *Invocation) Account(i int) (*Account, error) {
	if i < 0 || i >= len(inv.Accounts) {
		return nil, fmt.Errorf("%w: account index %d out of %d", common.ErrInvalidInstruction, i, len(inv.Accounts))
	}
	return inv.Accounts[i], nil
}

// IsSigner reports whether the i-th account signed the transaction or was
// authenticated by an attached proof.
func (inv *Invocation) IsSigner(i int) bool {
	if i < 0 || i >= len(inv.Accounts) {
		return false
	}
	a := inv.Accounts[i]
	if a.IsSigner {
		return true
	}
	_, ok := inv.derived[a.Key]
	return ok
}

// Runtime dispatches invocations to registered processors.
type Runtime struct {
	rent       rent.Rent
	processors map[solana.PublicKey]Processor
	logger     logging.Logger
}

func NewRuntime(r rent.Rent, logger logging.Logger, processors ...Processor) *Runtime {
	rt := &Runtime{
		rent:       r,
		processors: make(map[solana.PublicKey]Processor, len(processors)),
		logger:     logging.OrNop(logger),
	}
	for _, p := range processors {
		rt.Register(p)
	}
	return rt
}

// Register adds or replaces the processor for p.ProgramID().
func (r *Runtime) Register(p Processor) {
	r.processors[p.ProgramID()] = p
}

// Rent returns the rent parameters in effect.
func (r *Runtime) Rent() rent.Rent {
	return r.rent
}

// Invoke runs ix on behalf of the caller program. Every account the
// instruction names, and the program account itself, must be among
// accounts. Each proof that derives under caller grants signer privilege to
// the derived address. Invoke is all-or-nothing: on any error the handles
// are left as they were.
func (r *Runtime) Invoke(ctx context.Context, caller solana.PublicKey, ix solana.Instruction, accounts []*Account, proofs ...AuthorityProof) error {
	programID := ix.ProgramID()

	proc, ok := r.processors[programID]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrUnknownProgram, programID)
	}

	byKey := make(map[solana.PublicKey]*Account, len(accounts))
	for _, a := range accounts {
		if prev, ok := byKey[a.Key]; ok && prev != a {
			return fmt.Errorf("%w: two handles for %s", common.ErrInvalidInstruction, a.Key)
		}
		byKey[a.Key] = a
	}

	prog, ok := byKey[programID]
	if !ok {
		return fmt.Errorf("%w: program %s", common.ErrMissingAccount, programID)
	}
	if !prog.Executable {
		return fmt.Errorf("%w: %s", common.ErrProgramNotExecutable, programID)
	}

	derived := make(map[solana.PublicKey]struct{}, len(proofs))
	for _, p := range proofs {
		addr, err := p.Address(caller)
		if err != nil {
			return err
		}
		derived[addr] = struct{}{}
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInstruction, err)
	}

	metas := ix.Accounts()
	resolved := make([]*Account, len(metas))
	for i, m := range metas {
		a, ok := byKey[m.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrMissingAccount, m.PublicKey)
		}
		if m.IsSigner && !a.IsSigner {
			if _, ok := derived[a.Key]; !ok {
				return fmt.Errorf("%w: %s", common.ErrMissingRequiredSignature, a.Key)
			}
		}
		if m.IsWritable && !a.IsWritable {
			return fmt.Errorf("%w: %s", common.ErrReadonlyAccount, a.Key)
		}
		resolved[i] = a
	}

	touched := unique(resolved)
	snaps := snapshotAll(touched)
	beforeHi, beforeLo := sumLamports(touched)

	inv := &Invocation{
		ProgramID: programID,
		Caller:    caller,
		Metas:     metas,
		Accounts:  resolved,
		Data:      data,
		Rent:      r.rent,
		derived:   derived,
	}

	r.logger.Debug(ctx, "invoke", "program", programID, "caller", caller, "accounts", len(resolved))

	if err := proc.Process(ctx, inv); err != nil {
		restoreAll(snaps)
		r.logger.Warn(ctx, "invoke rejected", "program", programID, "error", err)
		return err
	}

	if hi, lo := sumLamports(touched); hi != beforeHi || lo != beforeLo {
		restoreAll(snaps)
		return fmt.Errorf("%w: program %s", common.ErrUnbalancedInstruction, programID)
	}
	return nil
}

// Execute runs fn as one unit of work over accounts. When fn fails, or when
// afterwards the total balance changed or a modified writable account is
// left with a non-zero balance below its rent-exempt minimum, every handle
// is restored and the error is returned. A panic in fn restores the handles
// and is rethrown.
func (r *Runtime) Execute(ctx context.Context, accounts []*Account, fn func(ctx context.Context) error) error {
	touched := unique(accounts)
	snaps := snapshotAll(touched)
	for _, a := range touched {
		a.beginUnit()
	}
	defer func() {
		p := recover()
		if p != nil {
			restoreAll(snaps)
		}
		for _, a := range touched {
			a.endUnit()
		}
		if p != nil {
			panic(p)
		}
	}()

	beforeHi, beforeLo := sumLamports(touched)

	if err := fn(ctx); err != nil {
		restoreAll(snaps)
		return err
	}

	if hi, lo := sumLamports(touched); hi != beforeHi || lo != beforeLo {
		restoreAll(snaps)
		return common.ErrUnbalancedInstruction
	}

	for _, s := range snaps {
		a := s.acc
		if !s.changed() || !a.IsWritable || a.Lamports == 0 {
			continue
		}
		if !r.rent.IsExempt(a.Lamports, uint64(len(a.Data))) {
			restoreAll(snaps)
			return fmt.Errorf("%w: %s holds %d, needs %d", common.ErrNotRentExempt,
				a.Key, a.Lamports, r.rent.MinimumBalance(uint64(len(a.Data))))
		}
	}
	return nil
}

func unique(accounts []*Account) []*Account {
	seen := make(map[*Account]struct{}, len(accounts))
	out := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func snapshotAll(accounts []*Account) []snapshot {
	snaps := make([]snapshot, len(accounts))
	for i, a := range accounts {
		snaps[i] = takeSnapshot(a)
	}
	return snaps
}

func restoreAll(snaps []snapshot) {
	for _, s := range snaps {
		s.restore()
	}
}

// sumLamports adds balances into a 128-bit (hi, lo) total.
func sumLamports(accounts []*Account) (hi, lo uint64) {
	for _, a := range accounts {
		var carry uint64
		lo, carry = bits.Add64(lo, a.Lamports, 0)
		hi += carry
	}
	return hi, lo
}

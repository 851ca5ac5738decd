// Package common defines sentinel errors shared by the runtime services and
// the account-maintenance primitives. Callers should use errors.Is to match
// these values; StepError tells which sub-step produced them.
package common

import (
	"errors"
	"fmt"
)

var (
	// Primitive-level errors, surfaced unchanged from the failing sub-call.
	ErrInsufficientPayerFunds = errors.New("insufficient payer funds")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrLedgerTransferFailed   = errors.New("ledger transfer failed")
	ErrResizeRejected         = errors.New("resize rejected")

	// Runtime errors.
	ErrAccountNotFound          = errors.New("account not found")
	ErrMissingAccount           = errors.New("instruction references an account that was not supplied")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrReadonlyAccount          = errors.New("account is not writable")
	ErrProgramNotExecutable     = errors.New("program account is not executable")
	ErrUnknownProgram           = errors.New("unknown program")
	ErrInvalidSeeds             = errors.New("invalid authority seeds")
	ErrUnbalancedInstruction    = errors.New("sum of account balances changed")
	ErrNotRentExempt            = errors.New("account is not rent-exempt")
	ErrInvalidInstruction       = errors.New("invalid instruction data")

	// Token ledger causes, always wrapped together with ErrLedgerTransferFailed.
	ErrInsufficientTokens   = errors.New("insufficient token balance")
	ErrAccountFrozen        = errors.New("token account is frozen")
	ErrUninitializedAccount = errors.New("token account is not initialized")
	ErrMintMismatch         = errors.New("token accounts have different mints")
	ErrOwnerMismatch        = errors.New("authority is neither owner nor delegate")
	ErrInvalidTokenAccount  = errors.New("invalid token account data")
	ErrDelegateAllowanceLow = errors.New("delegated amount is too low")

	// Staking handler errors.
	ErrStakeNotFound = errors.New("no stake entry for staker")
	ErrInvalidRecord = errors.New("malformed stake record")
	ErrPoolMismatch  = errors.New("account does not belong to the pool")
)

// StepError reports the sub-step of a primitive that failed.
type StepError struct {
	Op  string
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step wraps err with the name of the sub-step. A nil err stays nil.
func Step(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Op: op, Err: err}
}

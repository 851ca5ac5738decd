package chain

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/gagliardetto/solana-go"
)

const (
	// MaxPermittedDataLength is the largest data buffer an account may hold.
	MaxPermittedDataLength = 10 * 1024 * 1024

	// MaxPermittedDataIncrease is how far an account may grow within one
	// unit of work, measured from the length it had when the unit began.
	MaxPermittedDataIncrease = 10 * 1024
)

// NativeLoaderID owns the built-in program accounts.
var NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// Account is a runtime-managed account handle. Lamports is the native
// reserve balance, Data the variable-length storage buffer.
type Account struct {
	Key        solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool

	// Privileges granted by the enclosing transaction.
	IsSigner   bool
	IsWritable bool

	tracked bool
	baseLen int
}

// NewAccount returns a writable, non-signing handle.
func NewAccount(key, owner solana.PublicKey, lamports uint64, data []byte) *Account {
	return &Account{
		Key:        key,
		Owner:      owner,
		Lamports:   lamports,
		Data:       data,
		IsWritable: true,
	}
}

// NewProgramAccount returns the read-only executable handle of a built-in program.
func NewProgramAccount(programID solana.PublicKey) *Account {
	return &Account{
		Key:        programID,
		Owner:      NativeLoaderID,
		Lamports:   1,
		Executable: true,
	}
}

func (a *Account) String() string {
	return a.Key.String()
}

// Realloc changes the length of the data buffer to newLen bytes. New bytes
// are zeroed; a shrink only truncates. Balances are never touched.
func (a *Account) Realloc(newLen int) error {
	if !a.IsWritable {
		return fmt.Errorf("%w: %w: %s", common.ErrResizeRejected, common.ErrReadonlyAccount, a.Key)
	}
	if newLen < 0 {
		return fmt.Errorf("%w: negative length %d", common.ErrResizeRejected, newLen)
	}
	if newLen > MaxPermittedDataLength {
		return fmt.Errorf("%w: length %d exceeds maximum %d", common.ErrResizeRejected, newLen, MaxPermittedDataLength)
	}

	base := len(a.Data)
	if a.tracked {
		base = a.baseLen
	}
	if newLen > base && newLen-base > MaxPermittedDataIncrease {
		return fmt.Errorf("%w: growth of %d bytes exceeds per-unit limit %d",
			common.ErrResizeRejected, newLen-base, MaxPermittedDataIncrease)
	}

	old := len(a.Data)
	switch {
	case newLen <= old:
		a.Data = a.Data[:newLen]
	case newLen <= cap(a.Data):
		a.Data = a.Data[:newLen]
		clear(a.Data[old:])
	default:
		grown := make([]byte, newLen)
		copy(grown, a.Data)
		a.Data = grown
	}
	return nil
}

func (a *Account) beginUnit() {
	a.tracked = true
	a.baseLen = len(a.Data)
}

func (a *Account) endUnit() {
	a.tracked = false
	a.baseLen = 0
}

type snapshot struct {
	acc      *Account
	owner    solana.PublicKey
	lamports uint64
	data     []byte
}

func takeSnapshot(a *Account) snapshot {
	return snapshot{
		acc:      a,
		owner:    a.Owner,
		lamports: a.Lamports,
		data:     bytes.Clone(a.Data),
	}
}

func (s snapshot) restore() {
	s.acc.Owner = s.owner
	s.acc.Lamports = s.lamports
	s.acc.Data = bytes.Clone(s.data)
}

func (s snapshot) changed() bool {
	return s.acc.Lamports != s.lamports || len(s.acc.Data) != len(s.data)
}

package staking

import (
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/bank"
	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/gagliardetto/solana-go"
)

var (
	vaultSeed  = []byte("vault")
	recordSeed = []byte("record")
)

// Pool is one staking pool: a token vault controlled by a program-derived
// authority and the record listing the stakes.
type Pool struct {
	ProgramID      solana.PublicKey
	Mint           solana.PublicKey
	Vault          solana.PublicKey
	VaultAuthority solana.PublicKey
	Record         solana.PublicKey

	authorityProof chain.AuthorityProof
}

// NewPool derives the vault authority and the record address for mint under programID.
func NewPool(programID, mint, vault solana.PublicKey) (*Pool, error) {
	authority, proof, err := chain.DeriveAuthority(programID, vaultSeed, mint.Bytes())
	if err != nil {
		return nil, fmt.Errorf("derive vault authority: %w", err)
	}
	record, _, err := chain.DeriveAuthority(programID, recordSeed, mint.Bytes())
	if err != nil {
		return nil, fmt.Errorf("derive stake record: %w", err)
	}
	return &Pool{
		ProgramID:      programID,
		Mint:           mint,
		Vault:          vault,
		VaultAuthority: authority,
		Record:         record,
		authorityProof: proof,
	}, nil
}

// AuthorityProof returns the seeds that sign for the vault authority.
func (p *Pool) AuthorityProof() chain.AuthorityProof {
	return p.authorityProof
}

// Request lists the accounts a stake or unstake by staker touches.
func (p *Pool) Request(staker, stakerTokens solana.PublicKey) bank.Request {
	return bank.Request{
		Keys: []solana.PublicKey{
			staker, stakerTokens, p.Vault, p.VaultAuthority, p.Record,
			solana.SystemProgramID, solana.TokenProgramID,
		},
		Signers: []solana.PublicKey{staker},
	}
}

// Accounts picks the handles for staker out of a unit of work opened with Request.
func (p *Pool) Accounts(tx *bank.Tx, staker, stakerTokens solana.PublicKey) (Accounts, error) {
	var (
		acc Accounts
		err error
	)
	pick := func(dst **chain.Account, key solana.PublicKey) {
		if err != nil {
			return
		}
		*dst, err = tx.Account(key)
	}
	pick(&acc.Staker, staker)
	pick(&acc.StakerTokens, stakerTokens)
	pick(&acc.Vault, p.Vault)
	pick(&acc.VaultAuthority, p.VaultAuthority)
	pick(&acc.Record, p.Record)
	pick(&acc.SystemProgram, solana.SystemProgramID)
	pick(&acc.TokenProgram, solana.TokenProgramID)
	return acc, err
}

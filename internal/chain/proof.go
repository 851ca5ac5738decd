package chain

import (
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/gagliardetto/solana-go"
)

// AuthorityProof is the seed sequence, bump included, that re-derives a
// program-derived authority. Such an authority has no private key; the
// runtime grants it signer privilege when the invoking program attaches a
// proof that derives to it.
type AuthorityProof struct {
	Seeds [][]byte
}

// NewAuthorityProof copies seeds into a proof.
func NewAuthorityProof(seeds ...[]byte) AuthorityProof {
	p := AuthorityProof{Seeds: make([][]byte, len(seeds))}
	for i, s := range seeds {
		p.Seeds[i] = append([]byte(nil), s...)
	}
	return p
}

// Address re-derives the authority the proof stands for under programID.
func (p AuthorityProof) Address(programID solana.PublicKey) (solana.PublicKey, error) {
	addr, err := solana.CreateProgramAddress(p.Seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", common.ErrInvalidSeeds, err)
	}
	return addr, nil
}

// Bump returns the trailing one-byte seed, if there is one.
func (p AuthorityProof) Bump() (uint8, bool) {
	if len(p.Seeds) == 0 {
		return 0, false
	}
	last := p.Seeds[len(p.Seeds)-1]
	if len(last) != 1 {
		return 0, false
	}
	return last[0], true
}

// DeriveAuthority finds the canonical program-derived address for seeds
// under programID and returns it with the proof (seeds plus bump).
func DeriveAuthority(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, AuthorityProof, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, AuthorityProof{}, fmt.Errorf("%w: %v", common.ErrInvalidSeeds, err)
	}
	withBump := make([][]byte, 0, len(seeds)+1)
	withBump = append(withBump, seeds...)
	withBump = append(withBump, []byte{bump})
	return addr, NewAuthorityProof(withBump...), nil
}

package bank

import (
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/models"
	"github.com/gagliardetto/solana-go"
)

func toHandle(m *models.Account) (*chain.Account, error) {
	key, err := solana.PublicKeyFromBase58(m.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid account address %q: %w", m.Address, err)
	}
	owner, err := solana.PublicKeyFromBase58(m.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner %q of %s: %w", m.Owner, m.Address, err)
	}
	return &chain.Account{
		Key:        key,
		Owner:      owner,
		Lamports:   m.Lamports,
		Data:       m.Data,
		Executable: m.Executable,
		IsWritable: !m.Executable,
	}, nil
}

func toModel(a *chain.Account) *models.Account {
	return &models.Account{
		Address:    a.Key.String(),
		Owner:      a.Owner.String(),
		Lamports:   a.Lamports,
		Data:       a.Data,
		Executable: a.Executable,
	}
}

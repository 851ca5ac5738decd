// Package accounts persists runtime accounts. SQLiteRepository and
// PostgresRepository implement Repository over a dbx.DBTX, so both work
// inside a transaction.
//
// lamports are uint64 but stored in a signed BIGINT column; values are
// bit-cast on the way in and out, which is lossless.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/stakecore/internal/models"
)

// Repository describes account persistence.
type Repository interface {
	// Get returns the account stored under address or common.ErrAccountNotFound.
	Get(ctx context.Context, address string) (*models.Account, error)

	// Upsert inserts the account or overwrites every column of an existing one.
	Upsert(ctx context.Context, account *models.Account) error

	// List returns all accounts ordered by address.
	List(ctx context.Context) ([]*models.Account, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a        models.Account
		lamports int64
	)
	if err := s.Scan(&a.Address, &a.Owner, &lamports, &a.Data, &a.Executable); err != nil {
		return nil, err
	}
	a.Lamports = uint64(lamports)
	return &a, nil
}

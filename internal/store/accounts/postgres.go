package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/common"
	"github.com/dmitrijs2005/stakecore/internal/dbx"
	"github.com/dmitrijs2005/stakecore/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get locks the row for the rest of the transaction.
func (r *PostgresRepository) Get(ctx context.Context, address string) (*models.Account, error) {
	query := `SELECT address, owner, lamports, data, executable FROM accounts WHERE address = $1 FOR UPDATE`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return a, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (address, owner, lamports, data, executable)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address)
		DO UPDATE SET
			owner = EXCLUDED.owner,
			lamports = EXCLUDED.lamports,
			data = EXCLUDED.data,
			executable = EXCLUDED.executable;
	`
	_, err := r.db.ExecContext(ctx, query, a.Address, a.Owner, int64(a.Lamports), a.Data, a.Executable)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.Address, err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT address, owner, lamports, data, executable FROM accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

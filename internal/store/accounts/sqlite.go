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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, address string) (*models.Account, error) {
	query := `SELECT address, owner, lamports, data, executable FROM accounts WHERE address = ?`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return a, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, a *models.Account) error {
	query := `INSERT INTO accounts (address, owner, lamports, data, executable)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET owner = excluded.owner,
				lamports = excluded.lamports,
				data = excluded.data,
				executable = excluded.executable`
	_, err := r.db.ExecContext(ctx, query, a.Address, a.Owner, int64(a.Lamports), a.Data, a.Executable)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.Address, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Account, error) {
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

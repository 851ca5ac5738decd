// Package store opens the account database and applies the embedded goose
// migrations. The DSN picks the backend: postgres:// and postgresql:// URLs
// use pgx, anything else is a SQLite path or URI.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/stakecore/internal/dbx"
	"github.com/dmitrijs2005/stakecore/internal/store/accounts"
	"github.com/dmitrijs2005/stakecore/internal/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor reports which backend serves dsn.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// RepositoryManager hands out repositories bound to a DBTX and migrates the schema.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}

type SQLiteRepositoryManager struct{}

func (m SQLiteRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewSQLiteRepository(db)
}

func (m SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "sqlite3")
}

type PostgresRepositoryManager struct{}

func (m PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "pgx")
}

func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// NewRepositoryManager returns the manager for d.
func NewRepositoryManager(d Dialect) RepositoryManager {
	if d == DialectPostgres {
		return PostgresRepositoryManager{}
	}
	return SQLiteRepositoryManager{}
}

// Open connects to dsn, migrates the schema and returns the handle together
// with the matching repository manager.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	d := DialectFor(dsn)

	driver := "sqlite"
	if d == DialectPostgres {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", d, err)
	}
	if d == DialectSQLite {
		// One writer at a time; keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	rm := NewRepositoryManager(d)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, rm, nil
}

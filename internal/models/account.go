// Package models defines the persisted form of runtime accounts.
package models

// Account is one row of the accounts table. Addresses are base58 strings.
type Account struct {
	Address    string `db:"address"`
	Owner      string `db:"owner"`
	Lamports   uint64 `db:"lamports"`
	Data       []byte `db:"data"`
	Executable bool   `db:"executable"`
}

package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Unique indexes are partial over non-deleted rows: a soft-deleted entity
// releases its name/code/path for reuse.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledgers (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		description text,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		deleted_at timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledgers_name_live
		ON ledgers (name) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id uuid PRIMARY KEY,
		ledger_id uuid NOT NULL REFERENCES ledgers (id),
		name text NOT NULL,
		path text NOT NULL,
		paths text[] NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		deleted_at timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_ledger_path_name_live
		ON accounts (ledger_id, path, name) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS accounts_paths ON accounts USING GIN (paths)`,

	`CREATE TABLE IF NOT EXISTS commodities (
		id uuid PRIMARY KEY,
		ledger_id uuid NOT NULL REFERENCES ledgers (id),
		name text NOT NULL,
		code text NOT NULL,
		symbol text,
		subunit bigint NOT NULL,
		no_market boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		deleted_at timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS commodities_ledger_code_live
		ON commodities (ledger_id, code) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id uuid PRIMARY KEY,
		ledger_id uuid NOT NULL REFERENCES ledgers (id),
		description text NOT NULL,
		date_time timestamptz NOT NULL,
		details jsonb NOT NULL,
		tags text[] NOT NULL DEFAULT '{}',
		state text NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		deleted_at timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_ledger_date
		ON transactions (ledger_id, date_time)`,
	`CREATE INDEX IF NOT EXISTS transactions_details ON transactions USING GIN (details)`,
	`CREATE INDEX IF NOT EXISTS transactions_tags ON transactions USING GIN (tags)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	zap.L().Info("Database schema up to date")
	return nil
}

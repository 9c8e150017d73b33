// Package db opens the Postgres connection and owns the schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
)

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// Initialize creates the two ledger relations if they do not exist.
//
// The transaction_id primary key is the idempotency backstop: two concurrent
// transfers carrying the same id can both pass the read-check, but only one
// insert commits. Transactions carry no foreign keys to accounts because
// ledger records outlive drained-and-deleted accounts.
func Initialize(conn *sql.DB) error {
	queryAccounts := `
	CREATE TABLE IF NOT EXISTS accounts (
		account_id VARCHAR(50) PRIMARY KEY,
		owner_name VARCHAR(100) NOT NULL,
		balance NUMERIC(15, 2) NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := conn.Exec(queryAccounts); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	queryTransactions := `
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id VARCHAR(100) PRIMARY KEY,
		from_account_id VARCHAR(50) NOT NULL,
		to_account_id VARCHAR(50) NOT NULL,
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		status VARCHAR(10) NOT NULL,
		description VARCHAR(500),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := conn.Exec(queryTransactions); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}

	queryIndexes := `
	CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_account_id, created_at DESC);`

	if _, err := conn.Exec(queryIndexes); err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	return nil
}

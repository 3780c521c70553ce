package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/web3guardian/guardian-server-go/internal/config"
)

type DB struct {
	*sqlx.DB
}

func Connect(databaseURL string) (*DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	return &DB{db}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		handle        TEXT PRIMARY KEY,
		uuid          TEXT NOT NULL,
		image         TEXT NOT NULL DEFAULT '',
		type          TEXT NOT NULL,
		registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_audit (
		transaction_id TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		source_uuid    TEXT NOT NULL,
		target_uuid    TEXT NOT NULL,
		stars          INT NOT NULL,
		succeeded      BOOLEAN NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_audit_created_at ON feedback_audit (created_at)`,
}

// EnsureSchema creates the tables this service owns. Statements are
// idempotent so restarts are safe.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

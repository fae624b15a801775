package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type PostgresStore struct {
	sqlStore
	ConnStr string
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PostgresStore{sqlStore: sqlStore{db: db, numbered: true}, ConnStr: connStr}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS watchdogs (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL DEFAULT 'active',
			url TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			email TEXT,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			notify_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			threshold INTEGER NOT NULL DEFAULT 3
		);`,
		`CREATE TABLE IF NOT EXISTS watchdog_logs (
			id BIGSERIAL PRIMARY KEY,
			watchdog_id INTEGER NOT NULL,
			status SMALLINT NOT NULL,
			note TEXT NOT NULL,
			timestamp_start BIGINT NOT NULL,
			timestamp_stop BIGINT NOT NULL,
			occurrence_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS watchdog_logs_watchdog_id ON watchdog_logs (watchdog_id, id);`,
		`CREATE TABLE IF NOT EXISTS watchdog_seeds (
			name TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS self_logs (
			id BIGSERIAL PRIMARY KEY,
			start BIGINT,
			stop BIGINT
		);`,
	}
	for _, q := range queries {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

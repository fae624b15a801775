package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	sqlStore
	DBPath string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	file, dsn := sqliteDSN(path)
	if dir := filepath.Dir(file); file != "" && file != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{sqlStore: sqlStore{db: db}, DBPath: path}, nil
}

const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

// sqliteDSN returns the database file named by path and the DSN to open it
// with. path may be a plain file name or a file: URI with its own query.
func sqliteDSN(path string) (file, dsn string) {
	file = strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(file, '?'); i >= 0 {
		file = file[:i]
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return file, path + sep + sqliteParams
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	createTables := `
	CREATE TABLE IF NOT EXISTS watchdogs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL DEFAULT 'active',
		url TEXT,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		email TEXT,
		email_verified BOOLEAN NOT NULL DEFAULT 0,
		notify_enabled BOOLEAN NOT NULL DEFAULT 1,
		threshold INTEGER NOT NULL DEFAULT 3
	);
	CREATE TABLE IF NOT EXISTS watchdog_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		watchdog_id INTEGER NOT NULL,
		status INTEGER NOT NULL,
		note TEXT NOT NULL,
		timestamp_start INTEGER NOT NULL,
		timestamp_stop INTEGER NOT NULL,
		occurrence_count INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS watchdog_logs_watchdog_id ON watchdog_logs (watchdog_id, id);
	CREATE TABLE IF NOT EXISTS watchdog_seeds (
		name TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS self_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start INTEGER,
		stop INTEGER
	);`
	_, err := s.db.ExecContext(ctx, createTables)
	return err
}

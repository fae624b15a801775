package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-watchdog/internal/models"
)

var ErrNotFound = errors.New("watchdog not found")

type Store interface {
	Init(ctx context.Context) error
	Close() error

	// Watchdogs
	GetEnabledWatchdogs(ctx context.Context) ([]models.Watchdog, error)
	ListWatchdogs(ctx context.Context) ([]models.Watchdog, error)
	GetWatchdog(ctx context.Context, id int) (models.Watchdog, error)
	SeedWatchdog(ctx context.Context, w models.Watchdog) (id int, created bool, err error)
	SetWatchdogEnabled(ctx context.Context, id int, enabled bool) error
	DeleteWatchdog(ctx context.Context, id int) error

	// Watchdog logs
	GetLastLogRow(ctx context.Context, watchdogID int) (*models.LogRow, error)
	WriteLogRows(ctx context.Context, rows []models.LogRow) error
	RecentLogRows(ctx context.Context, watchdogID, limit int) ([]models.LogRow, error)

	// Self logs
	GetLastSelfLogRow(ctx context.Context) (*models.SelfLogRow, error)
	WriteSelfLog(ctx context.Context, afterOutage bool, now time.Time) error
	RecentSelfLogRows(ctx context.Context, limit int) ([]models.SelfLogRow, error)
}

// Open returns an initialised store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var s Store
	var err error
	switch driver {
	case "sqlite":
		s, err = NewSQLiteStore(dsn)
	case "postgres":
		s, err = NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init %s store: %w", driver, err)
	}
	return s, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

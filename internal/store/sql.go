package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-watchdog/internal/models"
)

// sqlStore holds the queries shared by the SQLite and Postgres backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const watchdogColumns = `id, name, mode, COALESCE(url, ''), enabled, COALESCE(email, ''), email_verified, notify_enabled, threshold`

func scanWatchdog(row interface{ Scan(...any) error }) (models.Watchdog, error) {
	var w models.Watchdog
	var mode string
	if err := row.Scan(&w.ID, &w.Name, &mode, &w.URL, &w.Enabled, &w.Email, &w.EmailVerified, &w.NotifyEnabled, &w.Threshold); err != nil {
		return models.Watchdog{}, err
	}
	w.Mode = models.Mode(mode)
	return w, nil
}

func (s *sqlStore) queryWatchdogs(ctx context.Context, where string) ([]models.Watchdog, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+watchdogColumns+" FROM watchdogs "+where+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list watchdogs: %w", err)
	}
	defer rows.Close()

	var watchdogs []models.Watchdog
	for rows.Next() {
		w, err := scanWatchdog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchdog: %w", err)
		}
		watchdogs = append(watchdogs, w)
	}
	return watchdogs, rows.Err()
}

func (s *sqlStore) GetEnabledWatchdogs(ctx context.Context) ([]models.Watchdog, error) {
	return s.queryWatchdogs(ctx, "WHERE enabled = TRUE")
}

func (s *sqlStore) ListWatchdogs(ctx context.Context) ([]models.Watchdog, error) {
	return s.queryWatchdogs(ctx, "")
}

func (s *sqlStore) GetWatchdog(ctx context.Context, id int) (models.Watchdog, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+watchdogColumns+" FROM watchdogs WHERE id = ?"), id)
	w, err := scanWatchdog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Watchdog{}, ErrNotFound
	}
	if err != nil {
		return models.Watchdog{}, fmt.Errorf("get watchdog %d: %w", id, err)
	}
	return w, nil
}

// SeedWatchdog inserts w unless a watchdog with the same name was seeded
// before. A seeded name is remembered even after the watchdog is deleted,
// so edits made at runtime survive restarts. created is false when nothing
// was inserted; id is then the existing watchdog's id, or 0 if it was
// deleted.
func (s *sqlStore) SeedWatchdog(ctx context.Context, w models.Watchdog) (id int, created bool, err error) {
	var email sql.NullString
	if w.Email != "" {
		email = sql.NullString{String: w.Email, Valid: true}
	}
	var url sql.NullString
	if w.Mode == models.ModeActive {
		url = sql.NullString{String: w.URL, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin seed of %q: %w", w.Name, err)
	}
	defer tx.Rollback()

	var seeded int
	err = tx.QueryRowContext(ctx, s.q("SELECT 1 FROM watchdog_seeds WHERE name = ?"), w.Name).Scan(&seeded)
	switch {
	case err == nil:
		id, err = existingWatchdogID(ctx, tx, s.q, w.Name)
		return id, false, err
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("check seed of %q: %w", w.Name, err)
	}

	err = tx.QueryRowContext(ctx, s.q(`
		INSERT INTO watchdogs (name, mode, url, enabled, email, email_verified, notify_enabled, threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`),
		w.Name, string(w.Mode), url, w.Enabled, email, w.EmailVerified, w.NotifyEnabled, w.Threshold,
	).Scan(&id)
	switch {
	case err == nil:
		created = true
	case errors.Is(err, sql.ErrNoRows):
		if id, err = existingWatchdogID(ctx, tx, s.q, w.Name); err != nil {
			return 0, false, err
		}
	default:
		return 0, false, fmt.Errorf("seed watchdog %q: %w", w.Name, err)
	}

	if _, err := tx.ExecContext(ctx, s.q("INSERT INTO watchdog_seeds (name) VALUES (?)"), w.Name); err != nil {
		return 0, false, fmt.Errorf("record seed of %q: %w", w.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit seed of %q: %w", w.Name, err)
	}
	return id, created, nil
}

func existingWatchdogID(ctx context.Context, tx *sql.Tx, q func(string) string, name string) (int, error) {
	var id int
	err := tx.QueryRowContext(ctx, q("SELECT id FROM watchdogs WHERE name = ?"), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("look up watchdog %q: %w", name, err)
	}
	return id, nil
}

func (s *sqlStore) SetWatchdogEnabled(ctx context.Context, id int, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE watchdogs SET enabled = ? WHERE id = ?"), enabled, id)
	if err != nil {
		return fmt.Errorf("update watchdog %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) DeleteWatchdog(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM watchdog_logs WHERE watchdog_id = ?"), id); err != nil {
		return fmt.Errorf("delete logs of watchdog %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.q("DELETE FROM watchdogs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete watchdog %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const logColumns = `id, watchdog_id, status, note, timestamp_start, timestamp_stop, occurrence_count`

func scanLogRow(row interface{ Scan(...any) error }) (models.LogRow, error) {
	var r models.LogRow
	var start, stop int64
	if err := row.Scan(&r.ID, &r.WatchdogID, &r.Status, &r.Note, &start, &stop, &r.OccurrenceCount); err != nil {
		return models.LogRow{}, err
	}
	r.TimestampStart = fromMillis(start)
	r.TimestampStop = fromMillis(stop)
	return r, nil
}

// GetLastLogRow returns the open row of watchdogID, or nil if it has none.
func (s *sqlStore) GetLastLogRow(ctx context.Context, watchdogID int) (*models.LogRow, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+logColumns+" FROM watchdog_logs WHERE watchdog_id = ? ORDER BY id DESC LIMIT 1"), watchdogID)
	r, err := scanLogRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last log row of watchdog %d: %w", watchdogID, err)
	}
	return &r, nil
}

// WriteLogRows inserts rows with a zero ID and updates the others, all in
// one transaction.
func (s *sqlStore) WriteLogRows(ctx context.Context, rows []models.LogRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin log batch: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO watchdog_logs (watchdog_id, status, note, timestamp_start, timestamp_stop, occurrence_count)
		VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare log insert: %w", err)
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, s.q(`
		UPDATE watchdog_logs SET status = ?, note = ?, timestamp_stop = ?, occurrence_count = ?
		WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("prepare log update: %w", err)
	}
	defer update.Close()

	for _, r := range rows {
		if r.ID == 0 {
			_, err = insert.ExecContext(ctx, r.WatchdogID, r.Status, r.Note, toMillis(r.TimestampStart), toMillis(r.TimestampStop), r.OccurrenceCount)
		} else {
			_, err = update.ExecContext(ctx, r.Status, r.Note, toMillis(r.TimestampStop), r.OccurrenceCount, r.ID)
		}
		if err != nil {
			return fmt.Errorf("write log row for watchdog %d: %w", r.WatchdogID, err)
		}
	}

	return tx.Commit()
}

func (s *sqlStore) RecentLogRows(ctx context.Context, watchdogID, limit int) ([]models.LogRow, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+logColumns+" FROM watchdog_logs WHERE watchdog_id = ? ORDER BY id DESC LIMIT ?"), watchdogID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent log rows of watchdog %d: %w", watchdogID, err)
	}
	defer rows.Close()

	var out []models.LogRow
	for rows.Next() {
		r, err := scanLogRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSelfLogRow(row interface{ Scan(...any) error }) (models.SelfLogRow, error) {
	var r models.SelfLogRow
	var start, stop sql.NullInt64
	if err := row.Scan(&r.ID, &start, &stop); err != nil {
		return models.SelfLogRow{}, err
	}
	if start.Valid {
		t := fromMillis(start.Int64)
		r.Start = &t
	}
	if stop.Valid {
		t := fromMillis(stop.Int64)
		r.Stop = &t
	}
	return r, nil
}

func (s *sqlStore) GetLastSelfLogRow(ctx context.Context) (*models.SelfLogRow, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, start, stop FROM self_logs ORDER BY id DESC LIMIT 1")
	r, err := scanSelfLogRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last self log row: %w", err)
	}
	return &r, nil
}

// WriteSelfLog opens a new running interval after an outage and otherwise
// extends the latest one to now.
func (s *sqlStore) WriteSelfLog(ctx context.Context, afterOutage bool, now time.Time) error {
	if !afterOutage {
		res, err := s.db.ExecContext(ctx, s.q("UPDATE self_logs SET stop = ? WHERE id = (SELECT MAX(id) FROM self_logs)"), toMillis(now))
		if err != nil {
			return fmt.Errorf("extend self log: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
	}

	if _, err := s.db.ExecContext(ctx, s.q("INSERT INTO self_logs (start, stop) VALUES (?, NULL)"), toMillis(now)); err != nil {
		return fmt.Errorf("open self log: %w", err)
	}
	return nil
}

func (s *sqlStore) RecentSelfLogRows(ctx context.Context, limit int) ([]models.SelfLogRow, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT id, start, stop FROM self_logs ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("recent self log rows: %w", err)
	}
	defer rows.Close()

	var out []models.SelfLogRow
	for rows.Next() {
		r, err := scanSelfLogRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-watchdog/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	watchdogs []models.Watchdog
	logs      []models.LogRow
	selfLogs  []models.SelfLogRow

	loadErr  error
	writeErr error
	selfErr  error
}

func (m *memStore) GetEnabledWatchdogs(context.Context) ([]models.Watchdog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []models.Watchdog
	for _, w := range m.watchdogs {
		if w.Enabled {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) GetLastLogRow(_ context.Context, watchdogID int) (*models.LogRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].WatchdogID == watchdogID {
			row := m.logs[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (m *memStore) WriteLogRows(_ context.Context, rows []models.LogRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, row := range rows {
		if row.ID == 0 {
			row.ID = int64(len(m.logs) + 1)
			m.logs = append(m.logs, row)
			continue
		}
		for i := range m.logs {
			if m.logs[i].ID == row.ID {
				m.logs[i] = row
			}
		}
	}
	return nil
}

func (m *memStore) GetLastSelfLogRow(context.Context) (*models.SelfLogRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selfErr != nil {
		return nil, m.selfErr
	}
	if len(m.selfLogs) == 0 {
		return nil, nil
	}
	row := m.selfLogs[len(m.selfLogs)-1]
	return &row, nil
}

func (m *memStore) WriteSelfLog(_ context.Context, afterOutage bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if afterOutage || len(m.selfLogs) == 0 {
		start := now
		m.selfLogs = append(m.selfLogs, models.SelfLogRow{ID: int64(len(m.selfLogs) + 1), Start: &start})
		return nil
	}
	stop := now
	m.selfLogs[len(m.selfLogs)-1].Stop = &stop
	return nil
}

func (m *memStore) logRows() []models.LogRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LogRow(nil), m.logs...)
}

// fakeProber answers from a fixed URL -> ok table.
type fakeProber struct {
	mu    sync.Mutex
	up    map[string]bool
	calls [][]string
}

func (p *fakeProber) Probe(_ context.Context, urls []string) []models.ProbeOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, urls)
	seen := map[string]bool{}
	var out []models.ProbeOutcome
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		ok := p.up[u]
		note := "Not ok. down"
		if ok {
			note = "Ok. up"
		}
		out = append(out, models.ProbeOutcome{URL: u, OK: ok, Note: note})
	}
	return out
}

func (p *fakeProber) set(url string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.up[url] = ok
}

type sentMail struct {
	to, subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{to: to, subject: subject})
	return r.err
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeChannel struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Send(context.Context, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *fakeBus) Publish(name string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, name)
	return nil
}

var errBoom = errors.New("boom")

// flakyProber panics while broken is set and otherwise reports every URL up.
type flakyProber struct {
	mu     sync.Mutex
	broken bool
}

func (p *flakyProber) Probe(_ context.Context, urls []string) []models.ProbeOutcome {
	p.mu.Lock()
	broken := p.broken
	p.mu.Unlock()
	if broken {
		panic("prober exploded")
	}
	var out []models.ProbeOutcome
	for _, u := range urls {
		out = append(out, models.ProbeOutcome{URL: u, OK: true, Note: "Ok. up"})
	}
	return out
}

func (p *flakyProber) fix() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broken = false
}

type panickingMailer struct{}

func (panickingMailer) Send(context.Context, string, string, string) error {
	panic("smtp exploded")
}

// Package scanner runs the periodic monitoring cycle: probe active
// watchdogs, check passive heartbeats, compact the status history, debounce
// alerts and record the scanner's own uptime.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"go-watchdog/internal/heartbeat"
	"go-watchdog/internal/models"
)

// Store is the persistence the scanner depends on.
type Store interface {
	GetEnabledWatchdogs(ctx context.Context) ([]models.Watchdog, error)
	GetLastLogRow(ctx context.Context, watchdogID int) (*models.LogRow, error)
	WriteLogRows(ctx context.Context, rows []models.LogRow) error
	GetLastSelfLogRow(ctx context.Context) (*models.SelfLogRow, error)
	WriteSelfLog(ctx context.Context, afterOutage bool, now time.Time) error
}

type Prober interface {
	Probe(ctx context.Context, urls []string) []models.ProbeOutcome
}

type Options struct {
	Interval time.Duration
	Margin   float64
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Report summarises one cycle.
type Report struct {
	Cycle            int64                  `json:"cycle"`
	StartedAt        time.Time              `json:"started_at"`
	Elapsed          time.Duration          `json:"elapsed"`
	AfterOutage      bool                   `json:"after_outage"`
	States           []models.WatchdogState `json:"states"`
	Notifications    []models.Notification  `json:"notifications"`
	RowsInserted     int                    `json:"rows_inserted"`
	RowsUpdated      int                    `json:"rows_updated"`
	DeliveryFailures int                    `json:"delivery_failures"`
	Err              string                 `json:"error,omitempty"`
}

type Scanner struct {
	store     Store
	prober    Prober
	tracker   *heartbeat.Tracker
	debouncer *Debouncer
	notifier  *Notifier
	logger    *log.Logger

	interval time.Duration
	margin   float64
	now      func() time.Time

	cycle   atomic.Int64
	running sync.Mutex

	mu        sync.RWMutex
	latest    *Report
	enabled   map[int]models.Watchdog
	observers []func(Report)
}

func New(store Store, prober Prober, tracker *heartbeat.Tracker, notifier *Notifier, logger *log.Logger, opts Options) *Scanner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		store:     store,
		prober:    prober,
		tracker:   tracker,
		debouncer: NewDebouncer(),
		notifier:  notifier,
		logger:    logger,
		interval:  opts.Interval,
		margin:    opts.Margin,
		now:       now,
	}
}

// OnReport registers fn to be called after every cycle.
func (s *Scanner) OnReport(fn func(Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Latest returns the report of the last finished cycle.
func (s *Scanner) Latest() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Report{}, false
	}
	return *s.latest, true
}

// EnabledWatchdog looks id up in the enabled set loaded by the last cycle.
// known is false until a cycle has loaded the set.
func (s *Scanner) EnabledWatchdog(id int) (w models.Watchdog, found, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enabled == nil {
		return models.Watchdog{}, false, false
	}
	w, found = s.enabled[id]
	return w, found, true
}

func (s *Scanner) Debouncer() *Debouncer { return s.debouncer }

// Counter reports the alert counter of watchdogID.
func (s *Scanner) Counter(watchdogID int) (failures int, notified bool, ok bool) {
	return s.debouncer.Counter(watchdogID)
}

func (s *Scanner) Interval() time.Duration { return s.interval }

// Run executes a cycle immediately and then one per interval until ctx is
// done. Cycles never overlap: the next one starts interval after the
// previous one started, or right away if it took longer than that.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("scanner started", "interval", s.interval, "margin", s.margin)
	for ctx.Err() == nil {
		start := time.Now()
		s.RunCycle(ctx)

		wait := max(s.interval-time.Since(start), 0)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	s.logger.Info("scanner stopped")
}

// RunCycle executes one full cycle. Errors and panics end the cycle early
// and are reported, never propagated.
func (s *Scanner) RunCycle(ctx context.Context) (report Report) {
	s.running.Lock()
	defer s.running.Unlock()

	n := s.cycle.Add(1)
	now := s.now()
	report = Report{Cycle: n, StartedAt: now}
	logger := s.logger.With("cycle", n)

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Sprintf("panic: %v", r)
			logger.Error("cycle aborted", "panic", r)
		}
		report.Elapsed = s.now().Sub(now)
		s.publish(report)
	}()

	if err := s.runCycle(ctx, now, &report, logger); err != nil {
		report.Err = err.Error()
		logger.Error("cycle aborted", "err", err)
		return report
	}

	logger.Info("cycle finished",
		"watchdogs", len(report.States),
		"inserted", report.RowsInserted,
		"updated", report.RowsUpdated,
		"notifications", len(report.Notifications),
		"elapsed", s.now().Sub(now).Round(time.Millisecond))
	return report
}

func (s *Scanner) runCycle(ctx context.Context, now time.Time, report *Report, logger *log.Logger) error {
	watchdogs, err := s.store.GetEnabledWatchdogs(ctx)
	if err != nil {
		return fmt.Errorf("load enabled watchdogs: %w", err)
	}
	s.setEnabled(watchdogs)

	selfLogKnown := true
	lastSelf, err := s.store.GetLastSelfLogRow(ctx)
	if err != nil {
		selfLogKnown = false
		logger.Error("read self log failed", "err", err)
	}
	report.AfterOutage = selfLogKnown && AfterOutage(lastSelf, now, s.interval)
	if report.AfterOutage && lastSelf != nil {
		logger.Warn("scanner was down", "last_seen", lastSelfReference(lastSelf))
	}

	var outcomes []models.ProbeOutcome
	fresh := freshSet{}
	var g errgroup.Group
	g.Go(guard(func() error {
		outcomes = s.prober.Probe(ctx, activeURLs(watchdogs))
		return nil
	}))
	g.Go(guard(func() error {
		if pruned := s.tracker.Prune(now); pruned > 0 {
			logger.Debug("pruned stale heartbeats", "count", pruned)
		}
		for _, w := range watchdogs {
			if w.Mode == models.ModePassive && s.tracker.IsFresh(w.ID, now, s.interval) {
				fresh[w.ID] = true
			}
		}
		return nil
	}))
	if err := g.Wait(); err != nil {
		return fmt.Errorf("probe step: %w", err)
	}

	states := Reconcile(watchdogs, outcomes, fresh, now, s.interval)
	report.States = states

	var persist errgroup.Group
	persist.Go(guard(func() error {
		report.RowsInserted, report.RowsUpdated = s.compact(ctx, states, now, logger)
		return nil
	}))
	persist.Go(guard(func() error {
		events := s.debouncer.Observe(watchdogs, states, now)
		report.Notifications = events
		if len(events) > 0 && s.notifier != nil {
			report.DeliveryFailures = s.notifier.Dispatch(ctx, events)
		}
		return nil
	}))
	if err := persist.Wait(); err != nil {
		return fmt.Errorf("persist step: %w", err)
	}

	if selfLogKnown {
		if err := s.store.WriteSelfLog(ctx, report.AfterOutage, now); err != nil {
			logger.Error("write self log failed", "err", err)
		}
	}
	return nil
}

func (s *Scanner) compact(ctx context.Context, states []models.WatchdogState, now time.Time, logger *log.Logger) (inserted, updated int) {
	rows := make([]models.LogRow, 0, len(states))
	for _, state := range states {
		last, err := s.store.GetLastLogRow(ctx, state.WatchdogID)
		if err != nil {
			logger.Error("read last log row failed", "watchdog", state.WatchdogID, "err", err)
			continue
		}
		row := Compact(last, state, now, s.interval, s.margin)
		if row.ID == 0 {
			inserted++
		} else {
			updated++
		}
		rows = append(rows, row)
	}

	if err := s.store.WriteLogRows(ctx, rows); err != nil {
		logger.Error("write log rows failed", "rows", len(rows), "err", err)
		return 0, 0
	}
	return inserted, updated
}

func (s *Scanner) setEnabled(watchdogs []models.Watchdog) {
	enabled := make(map[int]models.Watchdog, len(watchdogs))
	for _, w := range watchdogs {
		enabled[w.ID] = w
	}
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *Scanner) publish(report Report) {
	s.mu.Lock()
	s.latest = &report
	observers := append([]func(Report){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(report)
	}
}

type freshSet map[int]bool

func (f freshSet) IsFresh(watchdogID int, _ time.Time, _ time.Duration) bool {
	return f[watchdogID]
}

func lastSelfReference(row *models.SelfLogRow) time.Time {
	if row.Stop != nil {
		return *row.Stop
	}
	if row.Start != nil {
		return *row.Start
	}
	return time.Time{}
}

// guard turns a panic in fn into an error so that it ends the cycle
// instead of the process.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

package scanner

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"go-watchdog/internal/heartbeat"
	"go-watchdog/internal/models"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *memStore
	prober  *fakeProber
	mailer  *recordingMailer
	tracker *heartbeat.Tracker
	clock   *clock
	scanner *Scanner
}

const testInterval = 10 * time.Second

func newFixture(watchdogs ...models.Watchdog) *fixture {
	f := &fixture{
		store:   &memStore{watchdogs: watchdogs},
		prober:  &fakeProber{up: map[string]bool{}},
		mailer:  &recordingMailer{},
		tracker: heartbeat.New(testInterval),
		clock:   &clock{now: time.UnixMilli(1_700_000_000_000)},
	}
	logger := log.New(io.Discard)
	notifier := NewNotifier(f.mailer, nil, nil, logger)
	f.scanner = New(f.store, f.prober, f.tracker, notifier, logger, Options{
		Interval: testInterval,
		Margin:   0.05,
		Now:      f.clock.Now,
	})
	return f
}

func (f *fixture) cycle(t *testing.T) Report {
	t.Helper()
	report := f.scanner.RunCycle(context.Background())
	f.clock.Advance(testInterval)
	return report
}

func TestCycleSharesProbeAcrossWatchdogs(t *testing.T) {
	f := newFixture(
		models.Watchdog{ID: 1, Name: "a", Mode: models.ModeActive, URL: "https://svc.example", Enabled: true},
		models.Watchdog{ID: 2, Name: "b", Mode: models.ModeActive, URL: "https://svc.example", Enabled: true},
		models.Watchdog{ID: 3, Name: "off", Mode: models.ModeActive, URL: "https://off.example", Enabled: false},
	)
	f.prober.set("https://svc.example", true)

	report := f.cycle(t)
	if report.Err != "" {
		t.Fatalf("unexpected error %q", report.Err)
	}
	if len(report.States) != 2 {
		t.Fatalf("states = %d, want 2", len(report.States))
	}
	for _, s := range report.States {
		if s.Status != models.StatusUp {
			t.Errorf("watchdog %d status = %d, want up", s.WatchdogID, s.Status)
		}
	}
	for _, u := range f.prober.calls[0] {
		if u == "https://off.example" {
			t.Fatal("disabled watchdog was probed")
		}
	}
	if report.RowsInserted != 2 || report.RowsUpdated != 0 {
		t.Fatalf("inserted/updated = %d/%d, want 2/0", report.RowsInserted, report.RowsUpdated)
	}
}

func TestCycleCompactsUnchangedStates(t *testing.T) {
	f := newFixture(models.Watchdog{ID: 1, Name: "a", Mode: models.ModeActive, URL: "https://svc.example", Enabled: true})
	f.prober.set("https://svc.example", true)

	f.cycle(t)
	report := f.cycle(t)
	if report.RowsInserted != 0 || report.RowsUpdated != 1 {
		t.Fatalf("inserted/updated = %d/%d, want 0/1", report.RowsInserted, report.RowsUpdated)
	}
	f.cycle(t)

	rows := f.store.logRows()
	if len(rows) != 1 || rows[0].OccurrenceCount != 3 {
		t.Fatalf("rows = %+v, want one row seen 3 times", rows)
	}

	f.prober.set("https://svc.example", false)
	f.cycle(t)
	rows = f.store.logRows()
	if len(rows) != 2 || rows[1].Status != models.StatusDown || rows[1].OccurrenceCount != 1 {
		t.Fatalf("rows = %+v, want a new down row", rows)
	}
}

func TestCyclePassiveHeartbeat(t *testing.T) {
	f := newFixture(models.Watchdog{ID: 7, Name: "cron", Mode: models.ModePassive, Enabled: true})

	report := f.cycle(t)
	if report.States[0].Status != models.StatusDown {
		t.Fatal("passive watchdog without heartbeat should be down")
	}

	f.tracker.Record(7, f.clock.Now().Add(-time.Second))
	report = f.cycle(t)
	if report.States[0].Status != models.StatusUp {
		t.Fatal("passive watchdog with fresh heartbeat should be up")
	}
	if len(f.prober.calls[1]) != 0 {
		t.Fatalf("passive watchdog must not be probed, got %v", f.prober.calls[1])
	}
}

func TestCycleAlertsOnceAndRecovers(t *testing.T) {
	w := notifiable(1, 3)
	f := newFixture(w)
	f.prober.set(w.URL, false)

	for i := 0; i < 4; i++ {
		f.cycle(t)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("mails = %d after 4 failures, want 1", f.mailer.count())
	}

	f.prober.set(w.URL, true)
	report := f.cycle(t)
	if len(report.Notifications) != 1 || report.Notifications[0].Kind != models.NotifyOnline {
		t.Fatalf("notifications = %+v, want one online", report.Notifications)
	}
	if f.mailer.count() != 2 {
		t.Fatalf("mails = %d, want 2", f.mailer.count())
	}
}

func TestCycleContinuesWhenPersistenceFails(t *testing.T) {
	w := notifiable(1, 1)
	f := newFixture(w)
	f.store.writeErr = errBoom
	f.prober.set(w.URL, false)

	report := f.cycle(t)
	if report.Err != "" {
		t.Fatalf("persistence failure should not end the cycle, got %q", report.Err)
	}
	if report.RowsInserted != 0 {
		t.Fatalf("inserted = %d, want 0", report.RowsInserted)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("mails = %d, want 1", f.mailer.count())
	}
	if len(f.store.selfLogs) != 1 {
		t.Fatal("self log should still be written")
	}
}

func TestCycleEndsWhenWatchdogsCannotBeLoaded(t *testing.T) {
	f := newFixture(notifiable(1, 1))
	f.store.loadErr = errBoom

	var observed []Report
	f.scanner.OnReport(func(r Report) { observed = append(observed, r) })

	report := f.cycle(t)
	if report.Err == "" {
		t.Fatal("expected cycle error")
	}
	if len(f.prober.calls) != 0 || len(f.store.selfLogs) != 0 {
		t.Fatal("cycle should stop before probing and self logging")
	}
	if len(observed) != 1 || observed[0].Cycle != 1 {
		t.Fatalf("observed = %+v, want the failed report", observed)
	}
	if latest, ok := f.scanner.Latest(); !ok || latest.Err == "" {
		t.Fatal("latest report should carry the error")
	}

	f.store.loadErr = nil
	if report := f.cycle(t); report.Err != "" || report.Cycle != 2 {
		t.Fatalf("next cycle = %+v, want a clean second cycle", report)
	}
}

func TestCycleSkipsSelfLogWhenUnreadable(t *testing.T) {
	f := newFixture()
	f.store.selfErr = errBoom

	report := f.cycle(t)
	if report.Err != "" || report.AfterOutage {
		t.Fatalf("report = %+v", report)
	}
	if len(f.store.selfLogs) != 0 {
		t.Fatal("self log must not be written when the last row is unknown")
	}
}

func TestCycleSelfLog(t *testing.T) {
	f := newFixture()

	if report := f.cycle(t); !report.AfterOutage {
		t.Fatal("first cycle should start a new self log row")
	}
	if report := f.cycle(t); report.AfterOutage {
		t.Fatal("second cycle should extend the self log row")
	}
	if len(f.store.selfLogs) != 1 || f.store.selfLogs[0].Stop == nil {
		t.Fatalf("self logs = %+v", f.store.selfLogs)
	}

	f.clock.Advance(time.Minute)
	if report := f.cycle(t); !report.AfterOutage {
		t.Fatal("cycle after a gap should be flagged")
	}
	if len(f.store.selfLogs) != 2 {
		t.Fatalf("self logs = %d, want 2", len(f.store.selfLogs))
	}
}

func TestEnabledWatchdogSnapshot(t *testing.T) {
	f := newFixture(
		models.Watchdog{ID: 1, Mode: models.ModePassive, Enabled: true},
		models.Watchdog{ID: 2, Mode: models.ModePassive, Enabled: false},
	)
	if _, _, known := f.scanner.EnabledWatchdog(1); known {
		t.Fatal("snapshot should be unknown before the first cycle")
	}
	f.cycle(t)
	if _, found, known := f.scanner.EnabledWatchdog(1); !found || !known {
		t.Fatal("watchdog 1 should be in the snapshot")
	}
	if _, found, _ := f.scanner.EnabledWatchdog(2); found {
		t.Fatal("disabled watchdog should not be in the snapshot")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &memStore{}
	logger := log.New(io.Discard)
	s := New(store, &fakeProber{up: map[string]bool{}}, heartbeat.New(time.Millisecond), nil, logger, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cycles := make(chan int64, 16)
	s.OnReport(func(r Report) {
		select {
		case cycles <- r.Cycle:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := int64(1); i <= 2; i++ {
		select {
		case n := <-cycles:
			if n != i {
				t.Fatalf("cycle = %d, want %d", n, i)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("scanner did not run")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCycleSurvivesPanickingProber(t *testing.T) {
	f := newFixture(models.Watchdog{ID: 1, Name: "a", Mode: models.ModeActive, URL: "https://svc.example", Enabled: true})
	prober := &flakyProber{broken: true}
	f.scanner.prober = prober

	report := f.cycle(t)
	if !strings.Contains(report.Err, "prober exploded") {
		t.Fatalf("report error = %q, want the panic", report.Err)
	}
	if latest, ok := f.scanner.Latest(); !ok || latest.Cycle != 1 {
		t.Fatal("the failed cycle should still be published")
	}

	prober.fix()
	report = f.cycle(t)
	if report.Err != "" || report.Cycle != 2 || len(report.States) != 1 || report.States[0].Status != models.StatusUp {
		t.Fatalf("next cycle = %+v, want a clean second cycle", report)
	}
}

func TestCycleSurvivesPanickingMailer(t *testing.T) {
	w := notifiable(1, 1)
	f := newFixture(w)
	logger := log.New(io.Discard)
	f.scanner.notifier = NewNotifier(panickingMailer{}, nil, nil, logger)

	report := f.cycle(t)
	if report.Err != "" {
		t.Fatalf("a failed delivery should not end the cycle, got %q", report.Err)
	}
	if len(report.Notifications) != 1 || report.DeliveryFailures != 1 {
		t.Fatalf("notifications = %d failures = %d, want 1/1", len(report.Notifications), report.DeliveryFailures)
	}
	if report := f.cycle(t); report.Cycle != 2 {
		t.Fatalf("cycle = %d, want 2", report.Cycle)
	}
}

func TestCycleStartsNewRowAfterStaleGap(t *testing.T) {
	f := newFixture(models.Watchdog{ID: 1, Name: "a", Mode: models.ModeActive, URL: "https://svc.example", Enabled: true})
	f.prober.set("https://svc.example", true)

	f.scanner.RunCycle(context.Background())
	f.clock.Advance(testInterval * 11 / 10)

	report := f.scanner.RunCycle(context.Background())
	if report.RowsInserted != 1 || report.RowsUpdated != 0 {
		t.Fatalf("inserted/updated = %d/%d, want 1/0", report.RowsInserted, report.RowsUpdated)
	}
	if rows := f.store.logRows(); len(rows) != 2 || rows[1].OccurrenceCount != 1 {
		t.Fatalf("rows = %+v, want two single rows", rows)
	}
}

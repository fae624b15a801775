package scanner

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"go-watchdog/internal/alert"
	"go-watchdog/internal/models"
)

func TestDispatchCountsFailuresWithoutStopping(t *testing.T) {
	mailer := &recordingMailer{err: errBoom}
	good := &fakeChannel{}
	bad := &fakeChannel{err: errBoom}
	bus := &fakeBus{}
	n := NewNotifier(mailer, []alert.Channel{good, bad}, bus, log.New(io.Discard))

	events := []models.Notification{
		{Kind: models.NotifyOffline, WatchdogID: 1, Name: "a", Recipient: "a@example.com", At: time.Now()},
		{Kind: models.NotifyOnline, WatchdogID: 2, Name: "b", Recipient: "b@example.com", At: time.Now()},
	}
	failures := n.Dispatch(context.Background(), events)

	// two failed mails plus two failed channel posts
	if failures != 4 {
		t.Fatalf("failures = %d, want 4", failures)
	}
	if mailer.count() != 2 {
		t.Fatalf("mails attempted = %d, want 2", mailer.count())
	}
	if good.calls != 2 || bad.calls != 2 {
		t.Fatalf("channel calls = %d/%d, want 2/2", good.calls, bad.calls)
	}
	if len(bus.subjects) != 2 || bus.subjects[0] != "offline" || bus.subjects[1] != "online" {
		t.Fatalf("bus subjects = %v", bus.subjects)
	}
}

func TestNewNotifierDefaultsToDiscard(t *testing.T) {
	n := NewNotifier(nil, nil, nil, log.New(io.Discard))
	events := []models.Notification{{Kind: models.NotifyOffline, Name: "a"}}
	if failures := n.Dispatch(context.Background(), events); failures != 0 {
		t.Fatalf("failures = %d, want 0", failures)
	}
}

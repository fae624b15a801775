package scanner

import (
	"sync"
	"time"

	"go-watchdog/internal/models"
)

// alertCounter is either counting consecutive failures or, once the offline
// notification went out, notified until the watchdog recovers.
type alertCounter struct {
	failures int
	notified bool
}

// Debouncer turns per-cycle states into edge-triggered offline/online
// notifications. Counters live for the process lifetime only.
type Debouncer struct {
	mu       sync.Mutex
	counters map[int]alertCounter
}

func NewDebouncer() *Debouncer {
	return &Debouncer{counters: make(map[int]alertCounter)}
}

// Observe applies one cycle. watchdogs is the enabled set of the cycle; any
// counter for a watchdog outside it is dropped.
func (d *Debouncer) Observe(watchdogs []models.Watchdog, states []models.WatchdogState, now time.Time) []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	byID := make(map[int]models.Watchdog, len(watchdogs))
	for _, w := range watchdogs {
		byID[w.ID] = w
	}

	var events []models.Notification
	for _, s := range states {
		w, ok := byID[s.WatchdogID]
		if !ok || !w.CanNotify() {
			continue
		}
		threshold := max(w.Threshold, 1)
		c, exists := d.counters[w.ID]

		if s.Status == models.StatusDown {
			if c.notified {
				continue
			}
			c.failures++
			if c.failures >= threshold {
				c = alertCounter{notified: true}
				events = append(events, notification(models.NotifyOffline, w, s, threshold, now))
			}
			d.counters[w.ID] = c
			continue
		}

		if !exists {
			continue
		}
		if c.notified {
			events = append(events, notification(models.NotifyOnline, w, s, threshold, now))
		}
		delete(d.counters, w.ID)
	}

	for id := range d.counters {
		if _, ok := byID[id]; !ok {
			delete(d.counters, id)
		}
	}

	return events
}

// Counter exposes the state of one counter for display.
func (d *Debouncer) Counter(watchdogID int) (failures int, notified bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counters[watchdogID]
	return c.failures, c.notified, ok
}

func notification(kind models.NotificationKind, w models.Watchdog, s models.WatchdogState, threshold int, now time.Time) models.Notification {
	return models.Notification{
		Kind:       kind,
		WatchdogID: w.ID,
		Name:       w.Name,
		Recipient:  w.Email,
		Note:       s.Note,
		Threshold:  threshold,
		At:         now,
	}
}

// Package heartbeat keeps the in-memory ledger of pings received from
// passive watchdogs.
package heartbeat

import (
	"sync"
	"time"
)

// Tracker stores the last time each passive watchdog checked in. It is fed
// by the ingress handler and read by the scanner concurrently.
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[int]time.Time
	interval time.Duration
}

// New returns a Tracker that prunes entries older than twice interval.
func New(interval time.Duration) *Tracker {
	return &Tracker{
		lastSeen: make(map[int]time.Time),
		interval: interval,
	}
}

// Record upserts the heartbeat of watchdogID and opportunistically prunes
// stale entries.
func (t *Tracker) Record(watchdogID int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[watchdogID] = now
	t.pruneLocked(now)
}

// IsFresh reports whether watchdogID checked in no more than interval ago.
func (t *Tracker) IsFresh(watchdogID int, now time.Time, interval time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen, ok := t.lastSeen[watchdogID]
	if !ok {
		return false
	}
	return now.Sub(seen) <= interval
}

// LastSeen returns the recorded heartbeat time for watchdogID.
func (t *Tracker) LastSeen(watchdogID int) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen, ok := t.lastSeen[watchdogID]
	return seen, ok
}

// Prune drops entries whose age exceeds twice the tracker interval and
// returns how many were removed.
func (t *Tracker) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(now)
}

func (t *Tracker) pruneLocked(now time.Time) int {
	removed := 0
	for id, seen := range t.lastSeen {
		if now.Sub(seen) > 2*t.interval {
			delete(t.lastSeen, id)
			removed++
		}
	}
	return removed
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.lastSeen)
}

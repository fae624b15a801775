package scanner

import (
	"time"

	"go-watchdog/internal/models"
)

const (
	noteHeartbeatReceived = "Heartbeat received within the scan interval"
	noteHeartbeatMissing  = "No heartbeat received within the scan interval"
	noteNoProbeResult     = "No probe result for endpoint"
)

// Freshness answers whether a passive watchdog checked in recently.
type Freshness interface {
	IsFresh(watchdogID int, now time.Time, interval time.Duration) bool
}

// Reconcile merges probe outcomes and heartbeat freshness into exactly one
// state per watchdog. Watchdogs sharing a URL share its outcome.
func Reconcile(watchdogs []models.Watchdog, outcomes []models.ProbeOutcome, fresh Freshness, now time.Time, interval time.Duration) []models.WatchdogState {
	byURL := make(map[string]models.ProbeOutcome, len(outcomes))
	for _, o := range outcomes {
		byURL[o.URL] = o
	}

	states := make([]models.WatchdogState, 0, len(watchdogs))
	for _, w := range watchdogs {
		state := models.WatchdogState{WatchdogID: w.ID, Name: w.Name, Mode: w.Mode}
		switch w.Mode {
		case models.ModePassive:
			if fresh.IsFresh(w.ID, now, interval) {
				state.Status = models.StatusUp
				state.Note = noteHeartbeatReceived
			} else {
				state.Status = models.StatusDown
				state.Note = noteHeartbeatMissing
			}
		default:
			o, ok := byURL[w.URL]
			switch {
			case !ok:
				state.Status = models.StatusDown
				state.Note = noteNoProbeResult
			case o.OK:
				state.Status = models.StatusUp
				state.Note = o.Note
			default:
				state.Status = models.StatusDown
				state.Note = o.Note
			}
		}
		states = append(states, state)
	}
	return states
}

func activeURLs(watchdogs []models.Watchdog) []string {
	var urls []string
	for _, w := range watchdogs {
		if w.Mode == models.ModeActive {
			urls = append(urls, w.URL)
		}
	}
	return urls
}

package scanner

import (
	"time"

	"go-watchdog/internal/models"
)

// NeedNewRow reports whether state must start a new log row instead of
// extending last. A row that was not extended for longer than one interval
// plus the margin is closed so that silence stays visible in the history.
func NeedNewRow(last *models.LogRow, state models.WatchdogState, now time.Time, interval time.Duration, margin float64) bool {
	if last == nil {
		return true
	}
	if last.Status != state.Status || last.Note != state.Note {
		return true
	}
	return now.Sub(last.TimestampStop) > time.Duration(float64(interval)*(1+margin))
}

// Compact returns the row to write for state: either a fresh row (ID 0) or
// last extended to now.
func Compact(last *models.LogRow, state models.WatchdogState, now time.Time, interval time.Duration, margin float64) models.LogRow {
	if NeedNewRow(last, state, now, interval, margin) {
		return models.LogRow{
			WatchdogID:      state.WatchdogID,
			Status:          state.Status,
			Note:            state.Note,
			TimestampStart:  now,
			TimestampStop:   now,
			OccurrenceCount: 1,
		}
	}
	row := *last
	row.TimestampStop = now
	row.OccurrenceCount++
	return row
}

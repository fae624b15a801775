package scanner

import (
	"time"

	"go-watchdog/internal/models"
)

// outageFactor is how many intervals may pass without a self-log write
// before the gap counts as an outage of the scanner itself.
const outageFactor = 1.5

// AfterOutage reports whether this cycle is the first one after a gap in the
// scanner's own execution. A row without a stop is measured from its start.
func AfterOutage(last *models.SelfLogRow, now time.Time, interval time.Duration) bool {
	if last == nil {
		return true
	}
	ref := last.Stop
	if ref == nil {
		ref = last.Start
	}
	if ref == nil {
		return true
	}
	return now.Sub(*ref) > time.Duration(outageFactor*float64(interval))
}

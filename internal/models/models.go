package models

import "time"

type Mode string

const (
	ModeActive  Mode = "active"
	ModePassive Mode = "passive"
)

const (
	StatusDown = 0
	StatusUp   = 1
)

// Watchdog is a snapshot of one monitored target as stored by the CRUD layer.
type Watchdog struct {
	ID            int
	Name          string
	Mode          Mode
	URL           string
	Enabled       bool
	Email         string
	EmailVerified bool
	NotifyEnabled bool
	Threshold     int
}

// CanNotify reports whether offline/online mails may be sent for w.
func (w Watchdog) CanNotify() bool {
	return w.NotifyEnabled && w.EmailVerified && w.Email != ""
}

type ProbeOutcome struct {
	URL  string
	OK   bool
	Note string
}

type WatchdogState struct {
	WatchdogID int    `json:"watchdog_id"`
	Name       string `json:"name"`
	Mode       Mode   `json:"mode"`
	Status     int    `json:"status"`
	Note       string `json:"note"`
}

// LogRow is a compacted run of identical observations. A row with ID 0 has
// not been persisted yet.
type LogRow struct {
	ID              int64
	WatchdogID      int
	Status          int
	Note            string
	TimestampStart  time.Time
	TimestampStop   time.Time
	OccurrenceCount int
}

type SelfLogRow struct {
	ID    int64
	Start *time.Time
	Stop  *time.Time
}

type NotificationKind string

const (
	NotifyOffline NotificationKind = "offline"
	NotifyOnline  NotificationKind = "online"
)

type Notification struct {
	Kind       NotificationKind `json:"kind"`
	WatchdogID int              `json:"watchdog_id"`
	Name       string           `json:"name"`
	Recipient  string           `json:"recipient"`
	Note       string           `json:"note"`
	Threshold  int              `json:"threshold"`
	At         time.Time        `json:"at"`
}

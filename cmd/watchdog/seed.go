package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"go-watchdog/internal/config"
	"go-watchdog/internal/models"
)

type watchdogSeeder interface {
	SeedWatchdog(ctx context.Context, w models.Watchdog) (id int, created bool, err error)
}

// seedWatchdogs inserts the watchdogs declared in the config file the first
// time each name is seen. Later edits and deletions made from the dashboard
// are left alone.
func seedWatchdogs(ctx context.Context, st watchdogSeeder, seeds []config.WatchdogSeed, thresholds config.ThresholdConfig, logger *log.Logger) error {
	inserted := 0
	for _, seed := range seeds {
		w := models.Watchdog{
			Name:          seed.Name,
			Mode:          models.Mode(seed.Mode),
			URL:           seed.URL,
			Enabled:       boolOr(seed.Enabled, true),
			Email:         seed.Email,
			EmailVerified: seed.EmailVerified,
			NotifyEnabled: boolOr(seed.Notify, true),
			Threshold:     thresholds.ResolveThreshold(seed.Threshold),
		}
		id, created, err := st.SeedWatchdog(ctx, w)
		if err != nil {
			return fmt.Errorf("seed watchdog %q: %w", seed.Name, err)
		}
		if !created {
			logger.Debug("watchdog already seeded", "id", id, "name", w.Name)
			continue
		}
		inserted++
		logger.Debug("watchdog seeded", "id", id, "name", w.Name, "mode", w.Mode)
	}
	if inserted > 0 {
		logger.Info("watchdogs seeded", "count", inserted)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

package config

import (
	"fmt"
	"strings"
	"time"
)

type Validator interface {
	validateScannerConfig() error
	validateAlertConfig() error
	validateStoreConfig() error
	validateWatchdogSeeds() error
}

func validateConfig(config Validator) error {
	checks := []func() error{
		config.validateScannerConfig,
		config.validateAlertConfig,
		config.validateStoreConfig,
		config.validateWatchdogSeeds,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateScannerConfig() error {
	if c == nil {
		return fmt.Errorf(fmtErrEmptyConfig, "config")
	}

	if c.Scanner.Interval == "" {
		return fmt.Errorf(fmtErrEmptyConfigOption, "scanner.interval")
	}

	interval, err := time.ParseDuration(c.Scanner.Interval)
	if err != nil {
		return fmt.Errorf(fmtErrInvalidDuration, "scanner.interval", err)
	}

	minInterval, _ := time.ParseDuration(minScanInterval)
	if interval < minInterval {
		return fmt.Errorf(fmtErrOutOfRange, "scanner.interval", ">= "+minScanInterval)
	}

	if c.Scanner.StalenessMargin < 0 || c.Scanner.StalenessMargin >= 1 {
		return fmt.Errorf(fmtErrOutOfRange, "scanner.staleness_margin", "[0, 1)")
	}

	if c.Scanner.ProbeConcurrency < 0 {
		return fmt.Errorf(fmtErrOutOfRange, "scanner.probe_concurrency", ">= 0")
	}

	if c.Scanner.UserAgent == "" {
		return fmt.Errorf(fmtErrEmptyConfigOption, "scanner.user_agent")
	}

	return nil
}

func (c *Config) validateAlertConfig() error {
	if c == nil {
		return fmt.Errorf(fmtErrEmptyConfig, "config")
	}

	t := c.Alert.Thresholds
	if t.Min < 1 || t.Min > t.Default || t.Default > t.Max {
		return fmt.Errorf(fmtErrOutOfRange, "alert.thresholds", "1 <= min <= default <= max")
	}

	if c.Alert.Email.Enabled {
		if c.Alert.Email.Host == "" {
			return fmt.Errorf(fmtErrEmptyConfigOption, "alert.email.host")
		}
		if c.Alert.Email.Port <= 0 || c.Alert.Email.Port > 65535 {
			return fmt.Errorf(fmtErrOutOfRange, "alert.email.port", "1-65535")
		}
		if c.Alert.Email.From == "" {
			return fmt.Errorf(fmtErrEmptyConfigOption, "alert.email.from")
		}
	}

	for i, ch := range c.Alert.Channels {
		switch strings.ToLower(ch.Type) {
		case "discord", "slack", "webhook":
		default:
			return fmt.Errorf(fmtErrUnknownValue, fmt.Sprintf("alert.channels[%d].type", i), ch.Type)
		}
		if ch.URL == "" {
			return fmt.Errorf(fmtErrEmptyConfigOption, fmt.Sprintf("alert.channels[%d].url", i))
		}
	}

	return nil
}

func (c *Config) validateStoreConfig() error {
	if c == nil {
		return fmt.Errorf(fmtErrEmptyConfig, "config")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	case "":
		return fmt.Errorf(fmtErrEmptyConfigOption, "store.driver")
	default:
		return fmt.Errorf(fmtErrUnknownValue, "store.driver", c.Store.Driver)
	}

	if c.Store.DSN == "" {
		return fmt.Errorf(fmtErrEmptyConfigOption, "store.dsn")
	}

	return nil
}

func (c *Config) validateWatchdogSeeds() error {
	if c == nil {
		return fmt.Errorf(fmtErrEmptyConfig, "config")
	}

	t := c.Alert.Thresholds
	seen := make(map[string]bool, len(c.Watchdogs))
	for i, w := range c.Watchdogs {
		field := fmt.Sprintf("watchdogs[%d]", i)
		if w.Name == "" {
			return fmt.Errorf(fmtErrEmptyConfigOption, field+".name")
		}
		if seen[w.Name] {
			return fmt.Errorf("config field '%s' duplicates watchdog %q", field+".name", w.Name)
		}
		seen[w.Name] = true

		switch w.Mode {
		case "active":
			if w.URL == "" {
				return fmt.Errorf(fmtErrEmptyConfigOption, field+".url")
			}
		case "passive":
		default:
			return fmt.Errorf(fmtErrUnknownValue, field+".mode", w.Mode)
		}

		threshold := t.ResolveThreshold(w.Threshold)
		if threshold < t.Min || threshold > t.Max {
			return fmt.Errorf(fmtErrOutOfRange, field+".threshold", fmt.Sprintf("%d-%d", t.Min, t.Max))
		}
	}

	return nil
}

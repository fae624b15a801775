package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration that is valid on its own.
func Default() Config {
	return Config{
		Scanner: DefaultScannerConfig,
		Alert:   DefaultAlertConfig,
		Store:   DefaultStoreConfig,
		Server:  DefaultServerConfig,
		SSH:     DefaultSSHConfig,
		NATS:    DefaultNATSConfig,
		Logging: DefaultLoggingConfig,
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required (use -config)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults, applies environment overrides
// and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw Config
	r := raw(Default())

	if err := value.Decode(&r); err != nil {
		return err
	}

	*c = Config(r)

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envDatabaseDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(envSMTPPassword); v != "" {
		c.Alert.Email.Password = v
	}
	if v := os.Getenv(envNATSURL); v != "" {
		c.NATS.URL = v
	}
}

// ScanInterval returns the parsed scanner interval. Only call it on a
// validated config.
func (s ScannerConfig) ScanInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0
	}
	return d
}

// ResolveThreshold maps a seed threshold of 0 to the configured default.
func (t ThresholdConfig) ResolveThreshold(n int) int {
	if n == 0 {
		return t.Default
	}
	return n
}

package config

type Config struct {
	Scanner   ScannerConfig  `yaml:"scanner"`
	Alert     AlertConfig    `yaml:"alert"`
	Store     StoreConfig    `yaml:"store"`
	Server    ServerConfig   `yaml:"server"`
	SSH       SSHConfig      `yaml:"ssh"`
	NATS      NATSConfig     `yaml:"nats"`
	Logging   LoggingConfig  `yaml:"logging"`
	Watchdogs []WatchdogSeed `yaml:"watchdogs"`
}

type ScannerConfig struct {
	Interval         string  `yaml:"interval"`
	StalenessMargin  float64 `yaml:"staleness_margin"`
	ProbeConcurrency int     `yaml:"probe_concurrency"`
	UserAgent        string  `yaml:"user_agent"`
}

var DefaultScannerConfig = ScannerConfig{
	Interval:         "60s",
	StalenessMargin:  0.05,
	ProbeConcurrency: 0,
	UserAgent:        "go-watchdog/1.0 (+https://github.com/go-watchdog)",
}

type AlertConfig struct {
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Email      EmailConfig     `yaml:"email"`
	Channels   []ChannelConfig `yaml:"channels"`
}

var DefaultAlertConfig = AlertConfig{
	Thresholds: DefaultThresholdConfig,
	Email:      DefaultEmailConfig,
}

type ThresholdConfig struct {
	Default int `yaml:"default"`
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
}

var DefaultThresholdConfig = ThresholdConfig{
	Default: 3,
	Min:     1,
	Max:     100,
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var DefaultEmailConfig = EmailConfig{
	Enabled: false,
	Port:    25,
	From:    "watchdog@localhost",
}

// ChannelConfig is an operator-wide broadcast target (discord, slack or a
// generic webhook) that receives every notification in addition to email.
type ChannelConfig struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

var DefaultStoreConfig = StoreConfig{
	Driver: DriverSQLite,
	DSN:    "watchdog.db",
}

type ServerConfig struct {
	Port       int    `yaml:"port"`
	StatusPage bool   `yaml:"status_page"`
	Title      string `yaml:"title"`
}

var DefaultServerConfig = ServerConfig{
	Port:       8080,
	StatusPage: true,
	Title:      "Watchdog Status",
}

type SSHConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Port               int    `yaml:"port"`
	HostKeyPath        string `yaml:"host_key_path"`
	AuthorizedKeysPath string `yaml:"authorized_keys_path"`
}

var DefaultSSHConfig = SSHConfig{
	Enabled:            false,
	Port:               23234,
	HostKeyPath:        ".ssh/id_ed25519",
	AuthorizedKeysPath: "authorized_keys",
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

var DefaultNATSConfig = NATSConfig{
	SubjectPrefix: "watchdog",
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

var DefaultLoggingConfig = LoggingConfig{
	Level: "info",
}

// WatchdogSeed is upserted into the store at startup, matched by name.
type WatchdogSeed struct {
	Name          string `yaml:"name"`
	Mode          string `yaml:"mode"`
	URL           string `yaml:"url"`
	Email         string `yaml:"email"`
	EmailVerified bool   `yaml:"email_verified"`
	Notify        *bool  `yaml:"notify"`
	Enabled       *bool  `yaml:"enabled"`
	Threshold     int    `yaml:"threshold"`
}

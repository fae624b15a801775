package config

const (
	fmtErrEmptyConfig       = "config %s cannot be empty"
	fmtErrEmptyConfigOption = "config field '%s' cannot be empty"
	fmtErrInvalidDuration   = "config field '%s' is not a valid duration: %v"
	fmtErrOutOfRange        = "config field '%s' must be in the range %s"
	fmtErrUnknownValue      = "config field '%s' has unknown value %q"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	envDatabaseDSN  = "WATCHDOG_DATABASE_DSN"
	envSMTPPassword = "WATCHDOG_SMTP_PASSWORD"
	envNATSURL      = "WATCHDOG_NATS_URL"
)

const minScanInterval = "1s"

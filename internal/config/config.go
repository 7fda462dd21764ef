package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"    validate:"required"`
	Database DatabaseConfig `mapstructure:"database"  validate:"required"`
	QueryLog QueryLogConfig `mapstructure:"query_log" validate:"required"`
}

// ServerConfig contains settings for the diagnostics HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`

	// Connection pool settings. Zero values fall back to the defaults
	// set in Load.
	MaxOpenConns       int `mapstructure:"max_open_conns"        validate:"gte=1"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"        validate:"gte=0"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_min" validate:"gte=1"`
}

// QueryLogConfig contains settings for query performance logging.
type QueryLogConfig struct {
	// SlowThresholdMS marks queries slower than this many milliseconds
	// as slow in statistics and warning logs.
	SlowThresholdMS float64 `mapstructure:"slow_threshold_ms" validate:"gt=0"`

	// ExportDir is where JSON/CSV query log exports are written.
	ExportDir string `mapstructure:"export_dir"`
}

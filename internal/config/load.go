package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional YAML
// config file. Environment variables (prefix TENANTDB_) take precedence over
// file values, which take precedence over defaults. configPath may be empty,
// in which case only defaults and environment variables apply.
// Returns a populated Config or an error if loading or validation fails.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_min", 5)
	v.SetDefault("query_log.slow_threshold_ms", 100.0)
	v.SetDefault("query_log.export_dir", ".")

	if configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
			}
		}
	}

	// Environment variables: TENANTDB_DATABASE_URL, TENANTDB_SERVER_PORT, ...
	v.SetEnvPrefix("TENANTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables so they are visible
	// to Unmarshal even without a matching default or file entry.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"database.url", "TENANTDB_DATABASE_URL"},
		{"server.port", "TENANTDB_SERVER_PORT"},
		{"server.log_level", "TENANTDB_SERVER_LOG_LEVEL"},
		{"query_log.slow_threshold_ms", "TENANTDB_QUERY_LOG_SLOW_THRESHOLD_MS"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the loaded configuration against the struct validation
// tags and returns an error naming the offending fields.
func validate(cfg *Config) error {
	vd := validator.New()
	if err := vd.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

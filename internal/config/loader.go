package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the configuration values for the class scheduler service.
// Values are read from an optional YAML file and overridden by SCHEDULER_*
// environment variables.
type Config struct {
	HTTPPort  int
	SQLiteDSN string
	Timezone  string
	RedisAddr string
	CacheTTL  time.Duration
}

// fileConfig is the YAML form of Config. Durations are Go duration strings.
type fileConfig struct {
	HTTPPort  int    `yaml:"http_port"`
	SQLiteDSN string `yaml:"sqlite_dsn"`
	Timezone  string `yaml:"timezone"`
	RedisAddr string `yaml:"redis_addr"`
	CacheTTL  string `yaml:"cache_ttl"`
}

// Load builds the configuration from defaults, the YAML file named by
// SCHEDULER_CONFIG_FILE (if set), and SCHEDULER_* environment variables, in
// that order of precedence.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:  8080,
		SQLiteDSN: "file:class-scheduler.db",
		Timezone:  "UTC",
		CacheTTL:  5 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}

	if addr := strings.TrimSpace(os.Getenv("SCHEDULER_REDIS_ADDR")); addr != "" {
		cfg.RedisAddr = addr
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDULER_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.HTTPPort > 0 {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.SQLiteDSN != "" {
		cfg.SQLiteDSN = file.SQLiteDSN
	}
	if file.Timezone != "" {
		cfg.Timezone = file.Timezone
	}
	if file.RedisAddr != "" {
		cfg.RedisAddr = file.RedisAddr
	}
	if file.CacheTTL != "" {
		ttl, err := time.ParseDuration(file.CacheTTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("config file %s: cache_ttl %q is not a valid duration", path, file.CacheTTL)
		}
		cfg.CacheTTL = ttl
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package config loads storefront configuration. Values are layered:
// built-in defaults, then a YAML file, then command-line flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/logging"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseURLEnv is read when no database URL is configured.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the complete storefront configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Sweeper  SweeperConfig  `koanf:"sweeper"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the storefront listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects and configures the account and session store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
}

// AuthConfig configures hashing and sessions.
type AuthConfig struct {
	HashAlgorithm string        `koanf:"hash_algorithm"`
	BcryptCost    int           `koanf:"bcrypt_cost"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	SecureCookie  bool          `koanf:"secure_cookie"`
}

// SweeperConfig schedules expired-session purges. Empty Schedule disables it.
type SweeperConfig struct {
	Schedule string `koanf:"schedule"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			AutoMigrate:     true,
			ConnectAttempts: 5,
			ConnectBackoff:  250 * time.Millisecond,
		},
		Auth: AuthConfig{
			HashAlgorithm: auth.AlgorithmBcrypt,
			BcryptCost:    auth.DefaultBcryptCost,
			SessionTTL:    auth.DefaultSessionTTL,
		},
		Sweeper: SweeperConfig{
			Schedule: "@every 10m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":           "http.addr",
	"metrics-addr":        "metrics.addr",
	"database-driver":     "database.driver",
	"database-url":        "database.url",
	"auto-migrate":        "database.auto_migrate",
	"hash-algorithm":      "auth.hash_algorithm",
	"bcrypt-cost":         "auth.bcrypt_cost",
	"session-ttl":         "auth.session_ttl",
	"secure-cookie":       "auth.secure_cookie",
	"sweep-schedule":      "sweeper.schedule",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"shutdown-timeout":    "http.shutdown_timeout",
	"db-connect-attempts": "database.connect_attempts",
}

// RegisterFlags defines the configuration flags on fs with the built-in
// defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "storefront HTTP listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-driver", d.Database.Driver, "account store: postgres or memory")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	fs.Uint64("db-connect-attempts", d.Database.ConnectAttempts, "database ping retries at startup")
	fs.String("hash-algorithm", d.Auth.HashAlgorithm, "password hash for new accounts: bcrypt or argon2id")
	fs.Int("bcrypt-cost", d.Auth.BcryptCost, "bcrypt work factor")
	fs.Duration("session-ttl", d.Auth.SessionTTL, "fixed session lifetime")
	fs.Bool("secure-cookie", d.Auth.SecureCookie, "mark the session cookie Secure")
	fs.String("sweep-schedule", d.Sweeper.Schedule, "cron schedule for purging expired sessions (empty = disabled)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.Duration("shutdown-timeout", d.HTTP.ShutdownTimeout, "graceful shutdown timeout")
}

// Load builds a Config from defaults, the YAML file at path (if not empty)
// and the flags in fs (if not nil). The file is checked against the
// configuration schema first. Flags override the file only when set
// explicitly. A missing database URL falls back to $DATABASE_URL.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "decode configuration").
			Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", "must be positive")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required for the postgres driver (or set $"+DatabaseURLEnv+")")
		}
		if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
			return invalid("database.url", "must be a postgres:// or postgresql:// URL")
		}
	case DriverMemory:
	default:
		return invalid("database.driver", "must be postgres or memory")
	}

	switch c.Auth.HashAlgorithm {
	case auth.AlgorithmBcrypt, auth.AlgorithmArgon2id:
	default:
		return invalid("auth.hash_algorithm", "must be bcrypt or argon2id")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return invalid("auth.bcrypt_cost", "is out of range")
	}
	if c.Auth.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "must be positive")
	}

	if c.Sweeper.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sweeper.Schedule); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("field", "sweeper.schedule").
				Wrap(err)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be json or text")
	}
	return nil
}

func invalid(field, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		Errorf("%s %s", field, msg)
}

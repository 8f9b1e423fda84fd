/*
Package config resolves server settings.

PRECEDENCE (later wins):
  1. Defaults
  2. .env file in the working directory (github.com/joho/godotenv; never
     overrides variables already set in the environment)
  3. Environment variables
  4. Command-line flags

ENVIRONMENT:
  PORT                 HTTP port (8080)
  DB_DRIVER            memory | sqlite | mysql | postgres (sqlite)
  DB_DSN               path or DSN (stock.db)
  REDIS_ADDRESS        enables the distributed per-key lock when set
  REDIS_PASSWORD
  LOG_LEVEL            debug | info | warn | error (info)
  LOG_DEVELOPMENT      console encoder when true
  APPEND_MAX_ATTEMPTS  attempts per append before giving up (5)
  LOCK_TTL             Redis lock expiry, e.g. 10s
  INTEGRITY_INTERVAL   background integrity check period, 0 disables (1h)
  CORS_ORIGINS         comma separated allowed origins

FLAGS:
  -port, -db-driver, -db, -redis, -log-level
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	Port     int
	DBDriver string
	DBDSN    string

	RedisAddress  string
	RedisPassword string

	LogLevel       string
	LogDevelopment bool

	AppendMaxAttempts int
	LockTTL           time.Duration

	IntegrityInterval time.Duration

	CORSOrigins []string
}

func Default() Config {
	return Config{
		Port:              8080,
		DBDriver:          DriverSQLite,
		DBDSN:             "stock.db",
		LogLevel:          "info",
		AppendMaxAttempts: 5,
		LockTTL:           10 * time.Second,
		IntegrityInterval: time.Hour,
	}
}

// Load builds the configuration for the server binary. args excludes the
// program name.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := FromEnv(os.Getenv, Default())
	if err != nil {
		return Config{}, err
	}
	if cfg, err = ApplyFlags(cfg, args, io.Discard); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays the variables returned by getenv on base.
func FromEnv(getenv func(string) string, base Config) (Config, error) {
	cfg := base
	var errs []error

	if v := getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		}
		cfg.Port = n
	}
	if v := getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = strings.ToLower(v)
	}
	if v := getenv("DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := getenv("REDIS_ADDRESS"); v != "" {
		cfg.RedisAddress = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_DEVELOPMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_DEVELOPMENT: %w", err))
		}
		cfg.LogDevelopment = b
	}
	if v := getenv("APPEND_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("APPEND_MAX_ATTEMPTS: %w", err))
		}
		cfg.AppendMaxAttempts = n
	}
	if v := getenv("LOCK_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOCK_TTL: %w", err))
		}
		cfg.LockTTL = d
	}
	if v := getenv("INTEGRITY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INTEGRITY_INTERVAL: %w", err))
		}
		cfg.IntegrityInterval = d
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return cfg, errors.Join(errs...)
}

// ApplyFlags parses args over cfg. Usage and errors go to output.
func ApplyFlags(cfg Config, args []string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "store driver: memory, sqlite, mysql, postgres")
	fs.StringVar(&cfg.DBDSN, "db", cfg.DBDSN, `database path or DSN (":memory:" for a throwaway SQLite database)`)
	fs.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "Redis address for the distributed append lock")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.DBDriver {
	case DriverMemory:
	case DriverSQLite, DriverMySQL, DriverPostgres:
		if c.DBDSN == "" {
			errs = append(errs, fmt.Errorf("%s driver needs a DSN", c.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DBDriver))
	}
	if c.AppendMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("append max attempts must be at least 1"))
	}
	if c.RedisAddress != "" && c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock TTL must be positive"))
	}
	if c.IntegrityInterval < 0 {
		errs = append(errs, fmt.Errorf("integrity interval must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

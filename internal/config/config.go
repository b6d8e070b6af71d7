// Package config loads server and CLI configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	Shelves   ShelvesConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig points at the directory holding the database, the auth key and
// any other server-owned files.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver string // sqlite, badger or postgres
	// DSN is a file path for sqlite, a directory for badger and a connection
	// string for postgres. Empty means a default under Data.BasePath.
	DSN string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	AccessTokenKey      []byte // set from auth.LoadOrGenerateKey at startup
	AccessTokenDuration time.Duration
	SessionSecret       string
	SessionMaxAge       time.Duration
}

// ShelvesConfig holds the defaults used when a user's shelf settings are
// first created and the capacity of the shelf created on a user's first book.
type ShelvesConfig struct {
	DefaultCount    int
	DefaultCapacity int
	AdHocCapacity   int
}

// RateLimitConfig limits login and registration attempts per client IP.
type RateLimitConfig struct {
	AuthPerSecond float64
	AuthBurst     int
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses args and resolves every value with the precedence
// flag > environment > .env file > default.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shelfwise", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for server data")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")

	driver := fs.String("store-driver", "", "Record store (sqlite, badger, postgres)")
	dsn := fs.String("store-dsn", "", "Store location or connection string")

	tokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 24h)")
	sessionSecret := fs.String("session-secret", "", "Secret used to sign session cookies")
	sessionMaxAge := fs.String("session-max-age", "", "Session cookie lifetime (default: 168h)")

	shelfCount := fs.String("default-shelf-count", "", "Shelves created for a new user (default: 5)")
	shelfCapacity := fs.String("default-shelf-capacity", "", "Capacity of auto-created shelves (default: 10)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is normal; existing environment variables win.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App:    AppConfig{Environment: getConfigValue(*env, "ENV", "development")},
		Logger: LoggerConfig{Level: getConfigValue(*logLevel, "LOG_LEVEL", "info")},
		Data:   DataConfig{BasePath: getConfigValue(*dataPath, "DATA_PATH", "")},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "")),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getConfigValue(*driver, "STORE_DRIVER", DriverSQLite)),
			DSN:    getConfigValue(*dsn, "STORE_DSN", ""),
		},
		Auth: AuthConfig{
			SessionSecret: getConfigValue(*sessionSecret, "SESSION_SECRET", ""),
		},
		Shelves: ShelvesConfig{
			DefaultCount:    getIntConfigValue(*shelfCount, "DEFAULT_SHELF_COUNT", 5),
			DefaultCapacity: getIntConfigValue(*shelfCapacity, "DEFAULT_SHELF_CAPACITY", 10),
			AdHocCapacity:   getIntConfigValue("", "ADHOC_SHELF_CAPACITY", 100),
		},
		RateLimit: RateLimitConfig{
			AuthPerSecond: getFloatConfigValue("", "AUTH_RATE_PER_SECOND", 1),
			AuthBurst:     getIntConfigValue("", "AUTH_RATE_BURST", 10),
		},
	}

	durations := []struct {
		dst  *time.Duration
		flag string
		env  string
		def  string
		name string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", "write timeout"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
		{&cfg.Auth.AccessTokenDuration, *tokenDuration, "ACCESS_TOKEN_DURATION", "24h", "access token duration"},
		{&cfg.Auth.SessionMaxAge, *sessionMaxAge, "SESSION_MAX_AGE", "168h", "session max age"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	cfg.applyStoreDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that every value is present and in range.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverBadger:
		if c.Data.BasePath == "" {
			return errors.New("data path cannot be empty")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("STORE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be sqlite, badger, or postgres)", c.Store.Driver)
	}

	if c.Shelves.DefaultCount < 0 {
		return fmt.Errorf("default shelf count must not be negative, got %d", c.Shelves.DefaultCount)
	}
	if c.Shelves.DefaultCapacity <= 0 {
		return fmt.Errorf("default shelf capacity must be positive, got %d", c.Shelves.DefaultCapacity)
	}
	if c.Shelves.AdHocCapacity <= 0 {
		return fmt.Errorf("ad-hoc shelf capacity must be positive, got %d", c.Shelves.AdHocCapacity)
	}
	if c.App.Environment == "production" && c.Auth.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required in production")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes path absolute. An empty path yields defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

func (c *Config) expandDataPath() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Data.BasePath, filepath.Join(home, ".shelfwise"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

func (c *Config) applyStoreDefaults() {
	if c.Store.DSN != "" || c.Data.BasePath == "" {
		return
	}
	switch c.Store.Driver {
	case DriverSQLite:
		c.Store.DSN = filepath.Join(c.Data.BasePath, "shelfwise.db")
	case DriverBadger:
		c.Store.DSN = filepath.Join(c.Data.BasePath, "badger")
	}
}

// getConfigValue returns the flag value, then the environment value, then def.
func getConfigValue(flagValue, envKey, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

func getIntConfigValue(flagValue, envKey string, def int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getFloatConfigValue(flagValue, envKey string, def float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

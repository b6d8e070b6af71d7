package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Data:    DataConfig{BasePath: "/var/lib/shelfwise"},
		Store:   StoreConfig{Driver: DriverSQLite},
		Shelves: ShelvesConfig{DefaultCount: 5, DefaultCapacity: 10, AdHocCapacity: 100},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty env", func(c *Config) { c.App.Environment = "" }},
		{"unknown env", func(c *Config) { c.App.Environment = "test" }},
		{"env is case sensitive", func(c *Config) { c.App.Environment = "DEVELOPMENT" }},
		{"bad level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"negative shelf count", func(c *Config) { c.Shelves.DefaultCount = -1 }},
		{"zero capacity", func(c *Config) { c.Shelves.DefaultCapacity = 0 }},
		{"zero ad-hoc capacity", func(c *Config) { c.Shelves.AdHocCapacity = 0 }},
		{"production without session secret", func(c *Config) { c.App.Environment = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ZeroShelvesAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Shelves.DefaultCount = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, "shelfwise.db"), cfg.Store.DSN)
	assert.Equal(t, 5, cfg.Shelves.DefaultCount)
	assert.Equal(t, 10, cfg.Shelves.DefaultCapacity)
	assert.Equal(t, 100, cfg.Shelves.AdHocCapacity)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenDuration)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=7000\nDEFAULT_SHELF_COUNT=3\nLOG_LEVEL=warn\n"), 0o600))

	t.Setenv("DEFAULT_SHELF_COUNT", "4")
	t.Cleanup(func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load([]string{
		"-data-path", dir,
		"-env-file", envFile,
		"-log-level", "debug",
		"-store-driver", "badger",
	})
	require.NoError(t, err)

	// .env only
	assert.Equal(t, "7000", cfg.Server.Port)
	// environment beats .env
	assert.Equal(t, 4, cfg.Shelves.DefaultCount)
	// flag beats .env
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, filepath.Join(dir, "badger"), cfg.Store.DSN)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	_, err := Load([]string{"-data-path", dir, "-read-timeout", "soon", "-env-file", filepath.Join(dir, "none")})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/books", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
}

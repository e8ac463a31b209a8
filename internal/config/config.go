// Package config loads server configuration from a config file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. RENTAL_SERVER_ADDR.
const EnvPrefix = "RENTAL"

// Fetch timeout bounds
const (
	MinFetchTimeout = 10 * time.Second
	MaxFetchTimeout = 60 * time.Second
)

// Config holds the server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Calendar CalendarConfig
	DataDir  string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string
	StaticDir string
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "postgres"
	Driver string
	DSN    string
}

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	// JWTSecret signs HS256 tokens. Empty disables authentication.
	JWTSecret string
}

// CalendarConfig configures calendar import.
type CalendarConfig struct {
	SyncInterval     time.Duration
	FetchTimeout     time.Duration
	UserAgent        string
	FetchRate        float64
	SchedulerEnabled bool
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8099")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("calendar.sync_interval", "2h")
	v.SetDefault("calendar.fetch_timeout", "30s")
	v.SetDefault("calendar.user_agent", "RentalManager-CalendarSync/1.0")
	v.SetDefault("calendar.fetch_rate", 2.0)
	v.SetDefault("calendar.scheduler_enabled", true)
}

// Load reads configuration with the following precedence (highest to lowest):
// 1. Environment variables (RENTAL_*), including those from ./.env
// 2. Config file, if configFile is not empty
// 3. Defaults
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:      v.GetString("server.addr"),
			StaticDir: v.GetString("server.static_dir"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			DSN:    v.GetString("database.dsn"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Calendar: CalendarConfig{
			SyncInterval:     v.GetDuration("calendar.sync_interval"),
			FetchTimeout:     v.GetDuration("calendar.fetch_timeout"),
			UserAgent:        v.GetString("calendar.user_agent"),
			FetchRate:        v.GetFloat64("calendar.fetch_rate"),
			SchedulerEnabled: v.GetBool("calendar.scheduler_enabled"),
		},
		DataDir: v.GetString("data_dir"),
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
		c.Database.Driver = "sqlite3"
		if c.Database.DSN == "" {
			c.Database.DSN = filepath.Join(c.DataDir, "rental-manager.db")
		}
	case "postgres", "postgresql":
		c.Database.Driver = "postgres"
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Calendar.SyncInterval < time.Minute {
		return fmt.Errorf("calendar.sync_interval must be at least 1m, got %s", c.Calendar.SyncInterval)
	}

	switch {
	case c.Calendar.FetchTimeout < MinFetchTimeout:
		c.Calendar.FetchTimeout = MinFetchTimeout
	case c.Calendar.FetchTimeout > MaxFetchTimeout:
		c.Calendar.FetchTimeout = MaxFetchTimeout
	}

	if c.Calendar.FetchRate < 0 {
		c.Calendar.FetchRate = 0
	}

	return nil
}

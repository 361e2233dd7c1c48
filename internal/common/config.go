// Package common provides shared utilities for StockStash
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for StockStash
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Market      MarketConfig  `toml:"market"`
	Auth        AuthConfig    `toml:"auth"`
	Mail        MailConfig    `toml:"mail"`
	CORS        CORSConfig    `toml:"cors"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	BaseURL      string `toml:"base_url"` // external URL used in reset emails
	CookieSecure bool   `toml:"cookie_secure"`
}

// Storage drivers
const (
	DriverSQLite    = "sqlite"
	DriverSurrealDB = "surrealdb"
)

// StorageConfig selects and configures the user store backend.
type StorageConfig struct {
	Driver    string          `toml:"driver"`
	SQLite    SQLiteConfig    `toml:"sqlite"`
	SurrealDB SurrealDBConfig `toml:"surrealdb"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `toml:"path"` // file path or ":memory:"
}

// SurrealDBConfig holds SurrealDB connection settings.
type SurrealDBConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
	DefaultExchange string `toml:"default_exchange"` // appended to tickers without a suffix
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// MarketConfig holds the trading calendar and display currency.
type MarketConfig struct {
	Currency string   `toml:"currency"`
	Holidays []string `toml:"holidays"` // YYYY-MM-DD
}

// GetHolidays parses the holiday table. Malformed dates are skipped.
func (c *MarketConfig) GetHolidays() []time.Time {
	days := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(h))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

// AuthConfig holds session and password settings.
type AuthConfig struct {
	JWTSecret        string `toml:"jwt_secret"`
	SessionExpiry    string `toml:"session_expiry"`     // duration string, default "12h"
	RememberExpiry   string `toml:"remember_expiry"`    // duration string, default "720h"
	ResetTokenExpiry string `toml:"reset_token_expiry"` // duration string, default "30m"
	BcryptCost       int    `toml:"bcrypt_cost"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetSessionExpiry returns the lifetime of a regular session.
func (c *AuthConfig) GetSessionExpiry() time.Duration {
	return parseDuration(c.SessionExpiry, 12*time.Hour)
}

// GetRememberExpiry returns the lifetime of a "remember me" session.
func (c *AuthConfig) GetRememberExpiry() time.Duration {
	return parseDuration(c.RememberExpiry, 720*time.Hour)
}

// GetResetTokenExpiry returns the validity window of a password reset token.
func (c *AuthConfig) GetResetTokenExpiry() time.Duration {
	return parseDuration(c.ResetTokenExpiry, 30*time.Minute)
}

// MailConfig selects how password reset emails are delivered.
type MailConfig struct {
	Driver string     `toml:"driver"` // "log" or "smtp"
	From   string     `toml:"from"`
	SMTP   SMTPConfig `toml:"smtp"`
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// CORSConfig lists origins allowed to call the server cross-site.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

const defaultJWTSecret = "dev-jwt-secret-change-in-production"

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{Path: "data/stockstash.db"},
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Username:  "root",
				Password:  "root",
				Namespace: "stockstash",
				Database:  "stockstash",
			},
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:         "https://eodhd.com/api",
				RateLimit:       10,
				Timeout:         "30s",
				DefaultExchange: "US",
			},
		},
		Market: MarketConfig{
			Currency: "USD",
		},
		Auth: AuthConfig{
			JWTSecret:        defaultJWTSecret,
			SessionExpiry:    "12h",
			RememberExpiry:   "720h",
			ResetTokenExpiry: "30m",
			BcryptCost:       10,
		},
		Mail: MailConfig{
			Driver: "log",
			From:   "noreply@stockstash.local",
			SMTP:   SMTPConfig{Port: 587},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	config.Market.Currency = strings.ToUpper(config.Market.Currency)
	if config.Market.Currency == "" {
		config.Market.Currency = "USD"
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKSTASH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("STOCKSTASH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("STOCKSTASH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if v := os.Getenv("STOCKSTASH_BASE_URL"); v != "" {
		config.Server.BaseURL = v
	}

	if level := os.Getenv("STOCKSTASH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("STOCKSTASH_STORAGE_DRIVER"); v != "" {
		config.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("STOCKSTASH_SQLITE_PATH"); v != "" {
		config.Storage.SQLite.Path = v
	}
	if v := os.Getenv("STOCKSTASH_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}
	if v := os.Getenv("STOCKSTASH_SURREALDB_PASSWORD"); v != "" {
		config.Storage.SurrealDB.Password = v
	}

	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := os.Getenv("STOCKSTASH_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}

	// Auth overrides
	if v := os.Getenv("STOCKSTASH_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("STOCKSTASH_AUTH_RESET_TOKEN_EXPIRY"); v != "" {
		config.Auth.ResetTokenExpiry = v
	}

	if v := os.Getenv("STOCKSTASH_SMTP_PASSWORD"); v != "" {
		config.Mail.SMTP.Password = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of settings that must be supplied
// before the server can run in production.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.Clients.EODHD.APIKey == "" {
		missing = append(missing, "clients.eodhd.api_key")
	}
	switch {
	case c.Mail.Driver != "smtp":
		// the log driver would write reset links to the server log
		missing = append(missing, "mail.driver=smtp")
	case c.Mail.SMTP.Host == "":
		missing = append(missing, "mail.smtp.host")
	}
	return missing
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// TrustedProxies lists the proxy addresses or CIDRs whose X-Forwarded-For
	// is believed. Empty means the socket peer is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // postgres, mysql or memory
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	UseGorm  bool   `yaml:"use_gorm"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
}

// RateLimitConfig contains per-client limits for the public API
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// CleanupConfig controls the purge of soft-deleted listings
type CleanupConfig struct {
	Enabled          bool   `yaml:"enabled"`
	DailyRunTime     string `yaml:"daily_run_time"` // HH:MM
	RetentionDays    int    `yaml:"retention_days"`
	MaxDeletionCount int    `yaml:"max_deletion_count"`
	DryRun           bool   `yaml:"dry_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // text or json
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8084",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Type: "postgres",
			Postgres: PostgresConfig{
				SSLMode: "disable",
			},
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Enabled: true,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			RequestsPerHour:   3600,
		},
		Cleanup: CleanupConfig{
			Enabled:          false,
			DailyRunTime:     "03:00",
			RetentionDays:    90,
			MaxDeletionCount: 10000,
			DryRun:           false,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides file values with environment variables when set
func (c *Config) ApplyEnv() {
	c.Server.Port = getEnvOrConfig(c.Server.Port, "PORT", "8084")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		c.Server.TrustedProxies = strings.Split(proxies, ",")
	}

	c.Database.Type = getEnvOrConfig(c.Database.Type, "DB_TYPE", "postgres")
	switch c.Database.Type {
	case "mysql":
		m := &c.Database.MySQL
		m.Host = getEnvOrConfig(m.Host, "DB_HOST", "mysql")
		m.Port = getEnvInt(m.Port, "DB_PORT", 3306)
		m.User = getEnvOrConfig(m.User, "DB_USER", "realestate_user")
		m.Password = getEnvOrConfig(m.Password, "DB_PASSWORD", "realestate_pass")
		m.Database = getEnvOrConfig(m.Database, "DB_NAME", "realestate_db")
	case "postgres":
		p := &c.Database.Postgres
		p.Host = getEnvOrConfig(p.Host, "DB_HOST", "db")
		p.Port = getEnvInt(p.Port, "DB_PORT", 5432)
		p.User = getEnvOrConfig(p.User, "DB_USER", "realestate_user")
		p.Password = getEnvOrConfig(p.Password, "DB_PASSWORD", "realestate_pass")
		p.Database = getEnvOrConfig(p.Database, "DB_NAME", "realestate_db")
		p.SSLMode = getEnvOrConfig(p.SSLMode, "DB_SSLMODE", "disable")
	}

	ms := &c.Search.Meilisearch
	ms.Host = getEnvOrConfig(ms.Host, "MEILISEARCH_HOST", "http://meilisearch:7700")
	ms.APIKey = getEnvOrConfig(ms.APIKey, "MEILISEARCH_KEY", "")

	c.Logging.Level = getEnvOrConfig(c.Logging.Level, "LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrConfig(c.Logging.Format, "LOG_FORMAT", "text")
}

// SlogLevel maps the configured level name onto a slog level
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvOrConfig prefers the environment, then the config value, then the default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

func getEnvInt(configValue int, envKey string, defaultValue int) int {
	if value := os.Getenv(envKey); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	if configValue > 0 {
		return configValue
	}
	return defaultValue
}

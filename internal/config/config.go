package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Postgres, either a full DSN or IAM-authenticated RDS
	DatabaseURL string
	DBIAMAuth   bool
	DBEndpoint  string
	DBPort      int
	DBUser      string
	DBName      string

	// AWS
	AWSRegion  string
	AWSProfile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets journal (worker only)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// History cache
	HistoryCacheSize int
	HistoryCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends   = []string{"memory", "sqlite", "postgres"}
	validLogFormats = []string{"text", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/dinamifin.db"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBIAMAuth:   getEnvBool("DB_IAM_AUTH", false),
		DBEndpoint:  getEnv("DB_ENDPOINT", ""),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", ""),
		DBName:      getEnv("DB_NAME", "dinamifin"),

		AWSRegion:  getEnv("AWS_REGION", "eu-west-1"),
		AWSProfile: getEnv("AWS_PROFILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "dinamifin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_journal"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Journal"),

		HistoryCacheSize: getEnvInt("HISTORY_CACHE_SIZE", 512),
		HistoryCacheTTL:  getEnvDuration("HISTORY_CACHE_TTL", time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if c.SQLiteDBPath != ":memory:" {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		errors = append(errors, c.validatePostgres()...)
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.HistoryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid history cache size %d: must not be negative", c.HistoryCacheSize))
	}
	if c.HistoryCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid history cache TTL %v: must be at least 1 second", c.HistoryCacheTTL))
	} else if c.HistoryCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid history cache TTL %v: must be at most 24 hours", c.HistoryCacheTTL))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validatePostgres() []string {
	if !c.DBIAMAuth {
		if c.DatabaseURL == "" {
			return []string{"DATABASE_URL is required for postgres backend unless DB_IAM_AUTH is set"}
		}
		return nil
	}

	var errors []string
	if c.DBEndpoint == "" {
		errors = append(errors, "DB_ENDPOINT is required when DB_IAM_AUTH is set")
	}
	if c.DBUser == "" {
		errors = append(errors, "DB_USER is required when DB_IAM_AUTH is set")
	}
	if c.DBName == "" {
		errors = append(errors, "DB_NAME is required when DB_IAM_AUTH is set")
	}
	if c.DBPort < 1 || c.DBPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid DB port %d: must be between 1 and 65535", c.DBPort))
	}
	if c.AWSRegion == "" {
		errors = append(errors, "AWS_REGION is required when DB_IAM_AUTH is set")
	}
	return errors
}

// AMQPEnabled reports whether events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

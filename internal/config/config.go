package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Export configuration
	Export ExportConfig

	// Background scheduler configuration
	Scheduler SchedulerConfig

	// Identity headers and user cache
	Auth AuthConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadSize   int64 // in bytes
	UploadDir       string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string // "postgres" or "sqlite"
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ExportConfig holds export generation and retention settings
type ExportConfig struct {
	Root          string
	RetentionDays int
	Timeout       time.Duration
	PDFMaxRows    int
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled           bool
	CleanupInterval   time.Duration
	ScheduleInterval  time.Duration
	ETLInterval       time.Duration
	PermitsSourcePath string
	ETLBatchSize      int
	JobPollInterval   time.Duration
	MaxConcurrentJobs int
}

// AuthConfig holds the names of the identity headers set by the upstream auth proxy
type AuthConfig struct {
	UserHeader   string
	RoleHeader   string
	UserCacheTTL time.Duration
	UserCacheMax int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, after loading an optional .env file
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxUploadSize:   getInt64Env("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB
			UploadDir:       getEnv("UPLOAD_DIR", "./data/uploads"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "permit_dashboard"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "./data/dashboard.db"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Export: ExportConfig{
			Root:          getEnv("EXPORT_ROOT", "./static/exports"),
			RetentionDays: getIntEnv("EXPORT_RETENTION_DAYS", 30),
			Timeout:       getDurationEnv("EXPORT_TIMEOUT", 2*time.Minute),
			PDFMaxRows:    getIntEnv("EXPORT_PDF_MAX_ROWS", 5000),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getBoolEnv("ENABLE_SCHEDULED_JOBS", false),
			CleanupInterval:   getDurationEnv("CLEANUP_INTERVAL", 24*time.Hour),
			ScheduleInterval:  getDurationEnv("EXPORT_SCHEDULE_INTERVAL", time.Minute),
			ETLInterval:       getDurationEnv("ETL_INTERVAL", 6*time.Hour),
			PermitsSourcePath: getEnv("PERMITS_SOURCE_PATH", ""),
			ETLBatchSize:      getIntEnv("ETL_BATCH_SIZE", 1000),
			JobPollInterval:   getDurationEnv("EXPORT_JOB_POLL_INTERVAL", 2*time.Second),
			MaxConcurrentJobs: getIntEnv("EXPORT_MAX_CONCURRENT_JOBS", 0),
		},
		Auth: AuthConfig{
			UserHeader:   getEnv("AUTH_USER_HEADER", "X-User-ID"),
			RoleHeader:   getEnv("AUTH_ROLE_HEADER", "X-User-Role"),
			UserCacheTTL: getDurationEnv("USER_CACHE_TTL", 5*time.Minute),
			UserCacheMax: getIntEnv("USER_CACHE_SIZE", 1024),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: postgres, sqlite")
	}
	if c.Export.Root == "" {
		return fmt.Errorf("EXPORT_ROOT is required")
	}
	if c.Export.RetentionDays < 1 {
		return fmt.Errorf("EXPORT_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional snapshot cache)
	Redis RedisConfig

	// Upstream market data provider
	Provider ProviderConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds upstream market-data source configuration.
type ProviderConfig struct {
	BaseURL string

	// Minimum spacing between outbound requests, shared across all
	// instruments. The upstream throttles by client, not by symbol.
	MinRequestInterval time.Duration

	RequestTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// PipelineConfig holds refresh pipeline configuration.
type PipelineConfig struct {
	// FetchWorkers bounds concurrent fetch dispatch. Actual request
	// cadence is still governed by the shared rate limiter.
	FetchWorkers int

	// StalenessThreshold decides whether a series needs a refresh given
	// its high-water mark.
	StalenessThreshold time.Duration

	// HistoryStart is the earliest date fetched for an instrument with
	// no prior bars.
	HistoryStart time.Time

	// Benchmark is the index symbol RS scores are measured against.
	Benchmark string

	// RefreshSchedule is the cron spec for the scheduled daily refresh.
	// Empty disables scheduling.
	RefreshSchedule string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	historyStart, err := time.Parse("2006-01-02", getEnv("HISTORY_START", "2024-01-01"))
	if err != nil {
		return nil, fmt.Errorf("parse HISTORY_START: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Provider: ProviderConfig{
			BaseURL:            getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
			MinRequestInterval: getEnvAsDuration("PROVIDER_MIN_INTERVAL", "500ms"),
			RequestTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
			MaxRetries:         getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
			InitialBackoff:     getEnvAsDuration("PROVIDER_INITIAL_BACKOFF", "2s"),
			MaxBackoff:         getEnvAsDuration("PROVIDER_MAX_BACKOFF", "30s"),
		},

		Pipeline: PipelineConfig{
			FetchWorkers:       getEnvAsInt("FETCH_WORKERS", 4),
			StalenessThreshold: getEnvAsDuration("STALENESS_THRESHOLD", "24h"),
			HistoryStart:       historyStart,
			Benchmark:          getEnv("BENCHMARK", "SPY"),
			RefreshSchedule:    getEnv("REFRESH_SCHEDULE", "0 22 * * 1-5"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.FetchWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be at least 1")
	}

	if c.Provider.MinRequestInterval <= 0 {
		return fmt.Errorf("PROVIDER_MIN_INTERVAL must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

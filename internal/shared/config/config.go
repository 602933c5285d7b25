package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Records     RecordsConfig
	Aggregation AggregationConfig
	Activity    ActivityConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RateLimitRPS caps requests per client IP; 0 disables limiting
	RateLimitRPS   int
	RateLimitBurst int
}

// RecordsConfig holds configuration for the records backend client.
type RecordsConfig struct {
	// BaseURL is the root of the records REST API
	BaseURL string
	// Timeout per HTTP request
	Timeout time.Duration
	// RetryAttempts for read requests (writes are never retried)
	RetryAttempts int
	// RetryDelay between read retries
	RetryDelay time.Duration
	// RequestsPerSecond caps outbound calls to the backend
	RequestsPerSecond int
}

// AggregationConfig holds configuration for the summary aggregator.
type AggregationConfig struct {
	// FetchTimeout bounds each per-patient sub-resource fetch
	FetchTimeout time.Duration
	// MaxConcurrent bounds how many patients are summarized at once
	MaxConcurrent int
}

// ActivityConfig holds configuration for the clinical activity trail.
type ActivityConfig struct {
	// Enabled controls whether events are written to EventStoreDB;
	// when disabled (or the store is unreachable) an in-memory recorder
	// is used instead
	Enabled bool
	// StoreURL is an EventStoreDB connection string
	StoreURL string
	// Stream is the stream all activity events are appended to
	Stream string
}

type LoggingConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			RateLimitRPS:   getEnvInt("SERVER_RATE_LIMIT_RPS", 0),
			RateLimitBurst: getEnvInt("SERVER_RATE_LIMIT_BURST", 100),
		},
		Records: RecordsConfig{
			BaseURL:           getEnv("RECORDS_API_URL", "http://localhost:9000/api"),
			Timeout:           getEnvDuration("RECORDS_API_TIMEOUT", 30*time.Second),
			RetryAttempts:     getEnvInt("RECORDS_API_RETRY_ATTEMPTS", 3),
			RetryDelay:        getEnvDuration("RECORDS_API_RETRY_DELAY", 1*time.Second),
			RequestsPerSecond: getEnvInt("RECORDS_API_REQUESTS_PER_SECOND", 20),
		},
		Aggregation: AggregationConfig{
			FetchTimeout:  getEnvDuration("AGGREGATION_FETCH_TIMEOUT", 5*time.Second),
			MaxConcurrent: getEnvInt("AGGREGATION_MAX_CONCURRENT", 8),
		},
		Activity: ActivityConfig{
			Enabled:  getEnvBool("ACTIVITY_STORE_ENABLED", false),
			StoreURL: getEnv("ACTIVITY_STORE_URL", "esdb://localhost:2113?tls=false"),
			Stream:   getEnv("ACTIVITY_STREAM", "clinic-activity"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}, nil
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

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Resilience ResilienceConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	JWTSecret   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GatewayConfig tunes the simulated payment gateway.
type GatewayConfig struct {
	ApprovalRate float64
	Timeout      time.Duration
}

// ResilienceConfig carries the thresholds for the wrappers composed around
// the payment endpoints. These are deployment tuning, not business logic.
type ResilienceConfig struct {
	BreakerWindow        int
	BreakerFailureRate   float64
	BreakerMinCalls      int
	BreakerOpenFor       time.Duration
	BreakerHalfOpenProbe int
	RateLimit            int
	RateWindow           time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "payflow"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			ApprovalRate: getEnvAsFloat("GATEWAY_APPROVAL_RATE", 0.9),
			Timeout:      getEnvAsDuration("GATEWAY_TIMEOUT", 600*time.Millisecond),
		},
		Resilience: ResilienceConfig{
			BreakerWindow:        getEnvAsInt("BREAKER_WINDOW", 100),
			BreakerFailureRate:   getEnvAsFloat("BREAKER_FAILURE_RATE", 0.5),
			BreakerMinCalls:      getEnvAsInt("BREAKER_MIN_CALLS", 10),
			BreakerOpenFor:       getEnvAsDuration("BREAKER_OPEN_FOR", 30*time.Second),
			BreakerHalfOpenProbe: getEnvAsInt("BREAKER_HALF_OPEN_PROBES", 3),
			RateLimit:            getEnvAsInt("RATE_LIMIT", 100),
			RateWindow:           getEnvAsDuration("RATE_WINDOW", time.Minute),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

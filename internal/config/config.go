package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	RedisAddr string
	APIPort   string
	LogLevel  string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConns       int
	MinConns       int
	ConnectTimeout time.Duration
}

type RetrievalConfig struct {
	CandidateLimit int
	CohortCacheTTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() *Config {
	// Local development reads a .env file; in deployment the variables come
	// from the environment directly.
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Host:           getEnv("DATABASE_HOST", "localhost"),
			Port:           getEnvInt("DATABASE_PORT", 5432),
			Name:           getEnv("DATABASE_NAME", "postgres"),
			User:           getEnv("DATABASE_USER", "postgres"),
			Password:       getEnv("DATABASE_PASSWORD", ""),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MaxConns:       getEnvInt("DB_MAX_CONN", 10),
			MinConns:       getEnvInt("DB_MIN_CONN", 2),
			ConnectTimeout: time.Duration(getEnvInt("DB_CONNECT_TIMEOUT", 10)) * time.Second,
		},
		Retrieval: RetrievalConfig{
			CandidateLimit: getEnvInt("CANDIDATE_LIMIT", 400),
			CohortCacheTTL: time.Duration(getEnvInt("COHORT_CACHE_TTL_SECONDS", 180)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 40),
		},
		RedisAddr: getEnv("REDIS_ADDR", ""),
		APIPort:   getEnv("PORT", "8000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

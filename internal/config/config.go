package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	AppVersion  string
	Timezone    string

	BcryptCost      int
	RateLimitReqs   int
	RateLimitWindow int
	MaxBodySize     int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string

	// Index provisioning
	IndexCatalogTTL        time.Duration
	IndexProvisionMaxRetry int
	IndexRequestRate       float64 // requests per second accepted by the provisioning queue
	IndexReconcileInterval time.Duration
	WorkerConcurrency      int

	// Telemetry
	OTelEnabled  bool
	OTelEndpoint string

	// Seed passwords for the two household users
	ElPassword  string
	LinPassword string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/habit_tracker"),
		DBName:      getEnv("DB_NAME", "habit_tracker"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:4173"), ","),
		AppVersion:  getEnv("APP_VERSION", "2.5.5"),
		Timezone:    getEnv("TIMEZONE", "UTC"),

		BcryptCost:      getEnvInt("BCRYPT_COST", 12),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		MaxBodySize:     getEnvInt64("MAX_BODY_SIZE", 1048576), // 1MB, the API only takes small JSON bodies

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		IndexCatalogTTL:        time.Duration(getEnvInt("INDEX_CATALOG_TTL", 30)) * time.Second,
		IndexProvisionMaxRetry: getEnvInt("INDEX_PROVISION_MAX_RETRY", 5),
		IndexRequestRate:       getEnvFloat64("INDEX_REQUEST_RATE", 1),
		IndexReconcileInterval: time.Duration(getEnvInt("INDEX_RECONCILE_INTERVAL", 120)) * time.Second,
		WorkerConcurrency:      getEnvInt("WORKER_CONCURRENCY", 4),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),

		ElPassword:  getEnv("EL_PASSWORD", ""),
		LinPassword: getEnv("LIN_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	if len(c.AccessSecret) < 32 {
		return fmt.Errorf("ACCESS_SECRET is required and must be at least 32 characters")
	}

	if len(c.RefreshSecret) < 32 {
		return fmt.Errorf("REFRESH_SECRET is required and must be at least 32 characters")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid location: %v", c.Timezone, err)
	}

	return nil
}

// Location returns the timezone days are bucketed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

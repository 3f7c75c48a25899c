// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "JOURNALFLOW_"

// Config holds all application configuration
type Config struct {
	Env string

	HTTP     HTTPConfig
	GRPCAddr string
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Rate     RateConfig
	Sweep    SweepConfig
	Log      LogConfig

	// StoreTimeout bounds every workflow intent.
	StoreTimeout time.Duration
	CORSOrigins  []string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the store. Driver "memory" needs no DSN and keeps
// everything in-process.
type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	SeedsDir     string
	AutoMigrate  bool
}

type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// RedisConfig is shared by the users cache and the asynq queue. An empty
// Addr disables both.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// MinIOConfig configures library file storage. An empty Endpoint disables uploads.
type MinIOConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	DownloadTTL time.Duration
}

type RateConfig struct {
	PerSecond float64
	Burst     int
}

type SweepConfig struct {
	Interval time.Duration
	Batch    int
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("ENV", "development"),
		HTTP: HTTPConfig{
			Addr:            getEnv(envPrefix+"HTTP_ADDR", ":8080"),
			ReadTimeout:     getDurationEnv(envPrefix+"HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv(envPrefix+"HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationEnv(envPrefix+"HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		GRPCAddr: getEnv(envPrefix+"GRPC_ADDR", ":9090"),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv(envPrefix+"STORE", "postgres")),
			DSN:          getEnv(envPrefix+"PG_DSN", ""),
			MaxOpenConns: getIntEnv(envPrefix+"DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getIntEnv(envPrefix+"DB_MAX_IDLE_CONNS", 25),
			SeedsDir:     getEnv(envPrefix+"SEEDS_DIR", "ops/seeds"),
			AutoMigrate:  getBoolEnv(envPrefix+"AUTO_MIGRATE", false),
		},
		Auth: AuthConfig{
			Secret:   getEnv(envPrefix+"AUTH_SECRET", ""),
			Issuer:   getEnv(envPrefix+"AUTH_ISSUER", "journalflow"),
			TokenTTL: getDurationEnv(envPrefix+"TOKEN_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv(envPrefix+"REDIS_ADDR", ""),
			Password: getEnv(envPrefix+"REDIS_PASSWORD", ""),
			DB:       getIntEnv(envPrefix+"REDIS_DB", 0),
			CacheTTL: getDurationEnv(envPrefix+"CACHE_TTL", 5*time.Minute),
		},
		MinIO: MinIOConfig{
			Endpoint:    getEnv(envPrefix+"MINIO_ENDPOINT", ""),
			AccessKey:   getEnv(envPrefix+"MINIO_ACCESS_KEY", ""),
			SecretKey:   getEnv(envPrefix+"MINIO_SECRET_KEY", ""),
			Bucket:      getEnv(envPrefix+"MINIO_BUCKET", "journal-library"),
			UseSSL:      getBoolEnv(envPrefix+"MINIO_USE_SSL", false),
			DownloadTTL: getDurationEnv(envPrefix+"MINIO_DOWNLOAD_TTL", 15*time.Minute),
		},
		Rate: RateConfig{
			PerSecond: getFloatEnv(envPrefix+"RATE_PER_SEC", 20),
			Burst:     getIntEnv(envPrefix+"RATE_BURST", 40),
		},
		Sweep: SweepConfig{
			Interval: getDurationEnv(envPrefix+"SWEEP_INTERVAL", time.Minute),
			Batch:    getIntEnv(envPrefix+"SWEEP_BATCH", 100),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		StoreTimeout: getDurationEnv(envPrefix+"STORE_TIMEOUT", 10*time.Second),
		CORSOrigins:  getListEnv(envPrefix+"CORS_ORIGINS", nil),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("%sPG_DSN is required for the postgres store", envPrefix))
		}
	case "memory":
		if c.Production() {
			errs = append(errs, errors.New("the memory store is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("%sSTORE must be postgres or memory, got %q", envPrefix, c.Database.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("%sAUTH_SECRET is required", envPrefix))
	} else if c.Production() && len(c.Auth.Secret) < 32 {
		errs = append(errs, fmt.Errorf("%sAUTH_SECRET must be at least 32 bytes in production", envPrefix))
	}
	if c.Rate.PerSecond <= 0 || c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("rate limit settings must be positive"))
	}
	if c.StoreTimeout < 0 {
		errs = append(errs, fmt.Errorf("%sSTORE_TIMEOUT must not be negative", envPrefix))
	}
	if c.MinIO.Endpoint != "" && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		errs = append(errs, errors.New("MinIO credentials are required when an endpoint is set"))
	}
	if c.Sweep.Interval < time.Second {
		errs = append(errs, fmt.Errorf("%sSWEEP_INTERVAL must be at least 1s", envPrefix))
	}
	return errors.Join(errs...)
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

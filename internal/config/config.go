package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	SLA      SLAConfig
	SMTP     SMTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig controls deadline tracking and the periodic sweep.
type SLAConfig struct {
	SweepSchedule       string
	WarningFraction     float64
	PolicyCacheTTLSec   int
	SweepTimeoutSeconds int
	SweepBatchLimit     int
	SweepDisabled       bool
}

// SMTPConfig holds outbound email settings. An empty Host disables
// email delivery entirely.
type SMTPConfig struct {
	Host           string
	Port           string
	Username       string
	Password       string
	From           string
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	warningFraction, err := strconv.ParseFloat(getEnv("SLA_WARNING_FRACTION", "0.8"), 64)
	if err != nil || warningFraction <= 0 || warningFraction >= 1 {
		return nil, fmt.Errorf("invalid SLA_WARNING_FRACTION: must be a fraction in (0,1)")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SLA: SLAConfig{
			SweepSchedule:       getEnv("SLA_SWEEP_SCHEDULE", "* * * * *"),
			WarningFraction:     warningFraction,
			PolicyCacheTTLSec:   getEnvAsInt("SLA_POLICY_CACHE_TTL_SECONDS", 300),
			SweepTimeoutSeconds: getEnvAsInt("SLA_SWEEP_TIMEOUT_SECONDS", 55),
			SweepBatchLimit:     getEnvAsInt("SLA_SWEEP_BATCH_LIMIT", 1000),
			SweepDisabled:       getEnvAsBool("SLA_SWEEP_DISABLED", false),
		},
		SMTP: SMTPConfig{
			Host:           os.Getenv("SMTP_HOST"),
			Port:           getEnv("SMTP_PORT", "587"),
			Username:       os.Getenv("SMTP_USERNAME"),
			Password:       os.Getenv("SMTP_PASSWORD"),
			From:           getEnv("SMTP_FROM", "noreply@example.com"),
			TimeoutSeconds: getEnvAsInt("SMTP_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PolicyCacheTTL returns the Redis TTL for cached SLA policies.
func (s SLAConfig) PolicyCacheTTL() time.Duration {
	if s.PolicyCacheTTLSec <= 0 {
		return 0
	}
	return time.Duration(s.PolicyCacheTTLSec) * time.Second
}

// SweepTimeout bounds one full sweep run.
func (s SLAConfig) SweepTimeout() time.Duration {
	if s.SweepTimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepTimeoutSeconds) * time.Second
}

// SendTimeout bounds a single SMTP delivery attempt.
func (s SMTPConfig) SendTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

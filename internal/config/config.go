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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	AutoClose    AutoCloseConfig
	Transition   TransitionConfig
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
	HealthCheckSec int32
	// ApplicationName tags sessions in pg_stat_activity.
	ApplicationName string
	// LockTimeoutMs bounds how long a transition waits on a locked ticket row.
	LockTimeoutMs int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
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

// NotificationConfig points at the recipient rules and the link embedded in mails.
type NotificationConfig struct {
	EmailFrom string
	RulesPath string
	LinkURL   string
}

// AutoCloseConfig drives the solved ticket sweeper.
type AutoCloseConfig struct {
	Enabled       bool
	IntervalHours int
	DwellHours    int
	BatchSize     int
}

// TransitionConfig bounds user supplied transition input.
type TransitionConfig struct {
	NoteMaxRunes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			HealthCheckSec:  int32(getEnvAsInt("POSTGRES_HEALTH_CHECK_SECONDS", 30)),
			ApplicationName: getEnv("POSTGRES_APPLICATION_NAME", "helpdesk-service"),
			LockTimeoutMs:   getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "helpdesk:ticket-events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			RulesPath: getEnv("NOTIFY_RULES_PATH", "config/notification_rules.yaml"),
			LinkURL:   getEnv("NOTIFY_LINK_URL", "http://localhost:8080"),
		},
		AutoClose: AutoCloseConfig{
			Enabled:       getEnvAsBool("AUTO_CLOSE_ENABLED", true),
			IntervalHours: getEnvAsInt("AUTO_CLOSE_INTERVAL_HOURS", 12),
			DwellHours:    getEnvAsInt("AUTO_CLOSE_DWELL_HOURS", 48),
			BatchSize:     getEnvAsInt("AUTO_CLOSE_BATCH_SIZE", 100),
		},
		Transition: TransitionConfig{
			NoteMaxRunes: getEnvAsInt("TRANSITION_NOTE_MAX_RUNES", 500),
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

// Interval returns the sweep period, never shorter than one hour.
func (a AutoCloseConfig) Interval() time.Duration {
	hours := a.IntervalHours
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// Dwell returns how long a ticket stays solved before it is closed automatically.
func (a AutoCloseConfig) Dwell() time.Duration {
	hours := a.DwellHours
	if hours <= 0 {
		hours = 48
	}
	return time.Duration(hours) * time.Hour
}

// Batch returns the sweep page size.
func (a AutoCloseConfig) Batch() int {
	if a.BatchSize <= 0 {
		return 100
	}
	return a.BatchSize
}

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
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

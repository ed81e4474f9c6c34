package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine processes.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Sla      SlaConfig
	Notify   NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	MetricsAddr           string
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

// AuthConfig defines parameters for the admin API's bearer tokens. The
// operator key hash is a bcrypt digest of the shared operator key; token
// issuance compares against it.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorKeyHash       string
}

// SlaConfig carries the engine's tunables. The numeric defaults are policy,
// not requirements; every one of them is overridable from the environment.
type SlaConfig struct {
	SweepInterval        time.Duration
	WarningFraction      float64
	DefaultResponse      time.Duration
	DefaultResolution    time.Duration
	EvalWorkers          int
	DispatchWorkers      int
	DispatchPollInterval time.Duration
	VisibilityTimeout    time.Duration
	BackoffBase          time.Duration
	BackoffMax           time.Duration
	MaxAttempts          int
	TransportTimeout     time.Duration
}

// NotifyConfig holds notification transport endpoints. Empty values disable
// the corresponding channel.
type NotifyConfig struct {
	EmailFrom       string
	EmailTo         string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	WebhookURL      string
	AlertWebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	warningFraction := getEnvAsFloat("SLA_WARNING_FRACTION", 0.2)
	if warningFraction <= 0 || warningFraction >= 1 {
		return nil, fmt.Errorf("SLA_WARNING_FRACTION must be in (0,1), got %v", warningFraction)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			MetricsAddr:           getEnv("METRICS_ADDR", ":9090"),
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
			OperatorKeyHash:       os.Getenv("AUTH_OPERATOR_KEY_HASH"),
		},
		Sla: SlaConfig{
			SweepInterval:        getEnvAsDuration("SLA_SWEEP_INTERVAL", time.Minute),
			WarningFraction:      warningFraction,
			DefaultResponse:      getEnvAsDuration("SLA_DEFAULT_RESPONSE", 4*time.Hour),
			DefaultResolution:    getEnvAsDuration("SLA_DEFAULT_RESOLUTION", 48*time.Hour),
			EvalWorkers:          getEnvAsInt("SLA_EVAL_WORKERS", 8),
			DispatchWorkers:      getEnvAsInt("SLA_DISPATCH_WORKERS", 4),
			DispatchPollInterval: getEnvAsDuration("SLA_DISPATCH_POLL_INTERVAL", time.Second),
			VisibilityTimeout:    getEnvAsDuration("SLA_VISIBILITY_TIMEOUT", 30*time.Second),
			BackoffBase:          getEnvAsDuration("SLA_BACKOFF_BASE", 5*time.Second),
			BackoffMax:           getEnvAsDuration("SLA_BACKOFF_MAX", 5*time.Minute),
			MaxAttempts:          getEnvAsInt("SLA_MAX_ATTEMPTS", 5),
			TransportTimeout:     getEnvAsDuration("SLA_TRANSPORT_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", ""),
			EmailTo:         getEnv("NOTIFY_EMAIL_TO", ""),
			SMTPHost:        getEnv("NOTIFY_SMTP_HOST", ""),
			SMTPPort:        getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUser:        getEnv("NOTIFY_SMTP_USER", ""),
			SMTPPass:        os.Getenv("NOTIFY_SMTP_PASS"),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

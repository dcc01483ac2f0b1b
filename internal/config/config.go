package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
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
	Storage      StorageConfig
	Jobs         JobsConfig
	SLA          SLAConfig
	RateLimit    RateLimitConfig
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
	DSN             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is json or console.
	Format     string
	Production bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// NotificationConfig holds SMTP delivery settings.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	PublicURL    string
}

// EmailEnabled reports whether an SMTP relay is configured.
func (n NotificationConfig) EmailEnabled() bool {
	return n.SMTPHost != ""
}

// Storage drivers.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageAzure = "azure"
)

// StorageConfig selects and configures the file storage driver.
type StorageConfig struct {
	Driver string

	LocalRoot string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3UsePathStyle bool

	AzureConnectionString string
	AzureContainer        string
}

// JobsConfig sizes the worker pool and schedules periodic jobs.
type JobsConfig struct {
	Workers              int
	QueueSize            int
	ProgressEvery        int
	ExportRetentionHours int
	SLAEvaluateSpec      string
	ExportCleanupSpec    string
	AuthzReloadSpec      string
	ResumeSpec           string
	LockTTLSeconds       int
	StaleAfterSeconds    int
}

// ExportRetention is how long completed exports stay downloadable.
func (j JobsConfig) ExportRetention() time.Duration {
	return time.Duration(j.ExportRetentionHours) * time.Hour
}

// StaleAfter is how long a running job may go without a progress update
// before another instance may take it over.
func (j JobsConfig) StaleAfter() time.Duration {
	return time.Duration(j.StaleAfterSeconds) * time.Second
}

// LockTTL bounds how long one instance holds a periodic job lock.
func (j JobsConfig) LockTTL() time.Duration {
	return time.Duration(j.LockTTLSeconds) * time.Second
}

// SLAConfig tunes SLA evaluation.
type SLAConfig struct {
	WarningThresholdPercent int
}

// WarningRatio converts the threshold percent into a fraction.
func (s SLAConfig) WarningRatio() float64 {
	return float64(s.WarningThresholdPercent) / 100
}

// RateLimitConfig configures the per API key sliding window.
type RateLimitConfig struct {
	Enabled       bool
	Requests      int
	WindowSeconds int
}

// Window returns the sliding window length.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "helpdesk-service")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: appName,
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Production: strings.EqualFold(appEnv, "production"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			PublicURL:    strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Storage: StorageConfig{
			Driver:                strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
			LocalRoot:             getEnv("STORAGE_LOCAL_ROOT", "./data/files"),
			S3Bucket:              os.Getenv("STORAGE_S3_BUCKET"),
			S3Region:              getEnv("STORAGE_S3_REGION", "us-east-1"),
			S3Endpoint:            os.Getenv("STORAGE_S3_ENDPOINT"),
			S3UsePathStyle:        getEnvAsBool("STORAGE_S3_USE_PATH_STYLE", false),
			AzureConnectionString: os.Getenv("STORAGE_AZURE_CONNECTION_STRING"),
			AzureContainer:        getEnv("STORAGE_AZURE_CONTAINER", "helpdesk"),
		},
		Jobs: JobsConfig{
			Workers:              getEnvAsInt("JOBS_WORKERS", 4),
			QueueSize:            getEnvAsInt("JOBS_QUEUE_SIZE", 100),
			ProgressEvery:        getEnvAsInt("JOBS_PROGRESS_EVERY", 50),
			ExportRetentionHours: getEnvAsInt("JOBS_EXPORT_RETENTION_HOURS", 72),
			SLAEvaluateSpec:      getEnv("JOBS_SLA_EVALUATE_SPEC", "@every 1m"),
			ExportCleanupSpec:    getEnv("JOBS_EXPORT_CLEANUP_SPEC", "@hourly"),
			AuthzReloadSpec:      getEnv("JOBS_AUTHZ_RELOAD_SPEC", "@every 10m"),
			ResumeSpec:           getEnv("JOBS_RESUME_SPEC", "@every 5m"),
			LockTTLSeconds:       getEnvAsInt("JOBS_LOCK_TTL_SECONDS", 55),
			StaleAfterSeconds:    getEnvAsInt("JOBS_STALE_AFTER_SECONDS", 600),
		},
		SLA: SLAConfig{
			WarningThresholdPercent: getEnvAsInt("SLA_WARNING_THRESHOLD_PERCENT", 75),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 600),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required for the s3 driver")
		}
	case StorageAzure:
		if c.Storage.AzureConnectionString == "" {
			return fmt.Errorf("STORAGE_AZURE_CONNECTION_STRING is required for the azure driver")
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: expected local, s3 or azure", c.Storage.Driver)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("JOBS_WORKERS must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("JOBS_QUEUE_SIZE must be positive")
	}
	if p := c.SLA.WarningThresholdPercent; p <= 0 || p >= 100 {
		return fmt.Errorf("SLA_WARNING_THRESHOLD_PERCENT must be between 1 and 99")
	}
	return nil
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

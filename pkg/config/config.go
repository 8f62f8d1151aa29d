package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	MaxUploadMB        int
	RateLimitPerMinute int
	JWTSecret          string
	Admin              AdminConfig

	Database DatabaseConfig
	RedisURL string
	Storage  StorageConfig
	Push     PushConfig
	Reminder ReminderConfig

	OTLPEndpoint string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	SecretID string
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// AdminConfig seeds the first admin account when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	Folder        string
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
}

type ReminderConfig struct {
	Enabled  bool
	Schedule string
	Timezone string
	LockTTL  time.Duration
}

// Location resolves the reminder timezone, defaulting to the process zone.
func (r ReminderConfig) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// Load reads configuration from the environment, after merging a .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Environment:        v.GetString("ENVIRONMENT"),
		ServerPort:         v.GetInt("SERVER_PORT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		CORSAllowedOrigins: parseCSV(v.GetString("CORS_ALLOWED_ORIGINS")),
		MaxUploadMB:        v.GetInt("MAX_UPLOAD_MB"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			SecretID: v.GetString("DB_SECRET_ID"),
		},
		RedisURL: v.GetString("REDIS_URL"),
		Storage: StorageConfig{
			Bucket:        v.GetString("S3_BUCKET"),
			Region:        v.GetString("S3_REGION"),
			Endpoint:      v.GetString("S3_ENDPOINT"),
			PublicBaseURL: strings.TrimRight(v.GetString("S3_PUBLIC_BASE_URL"), "/"),
			Folder:        v.GetString("STORAGE_FOLDER"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  v.GetString("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: v.GetString("VAPID_PRIVATE_KEY"),
			Subject:         v.GetString("VAPID_SUBJECT"),
		},
		Reminder: ReminderConfig{
			Enabled:  v.GetBool("REMINDER_ENABLED"),
			Schedule: v.GetString("REMINDER_SCHEDULE"),
			Timezone: v.GetString("REMINDER_TIMEZONE"),
			LockTTL:  v.GetDuration("REMINDER_LOCK_TTL"),
		},
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.Bucket != "" {
		cfg.Storage.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Storage.Bucket, cfg.Storage.Region)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")
	v.SetDefault("MAX_UPLOAD_MB", 50)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 300)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "crm")
	v.SetDefault("DB_PASSWORD", "dev")
	v.SetDefault("DB_NAME", "crm")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("S3_REGION", "ap-south-1")
	v.SetDefault("STORAGE_FOLDER", "employees")
	v.SetDefault("VAPID_SUBJECT", "mailto:admin@shineinfo.example")
	v.SetDefault("REMINDER_ENABLED", true)
	v.SetDefault("REMINDER_SCHEDULE", "45 10 * * *")
	v.SetDefault("REMINDER_TIMEZONE", "Local")
	v.SetDefault("REMINDER_LOCK_TTL", "10m")
}

func validate(cfg *Config) error {
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", cfg.ServerPort)
	}
	if cfg.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid MAX_UPLOAD_MB: %d", cfg.MaxUploadMB)
	}
	if cfg.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %d", cfg.RateLimitPerMinute)
	}
	if _, err := cron.ParseStandard(cfg.Reminder.Schedule); err != nil {
		return fmt.Errorf("invalid REMINDER_SCHEDULE: %w", err)
	}
	if _, err := cfg.Reminder.Location(); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}
	if cfg.Reminder.LockTTL <= 0 {
		return fmt.Errorf("invalid REMINDER_LOCK_TTL: %s", cfg.Reminder.LockTTL)
	}
	return nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/spark-tracker/internal/engagement"
)

// Config is the root configuration shared by every binary.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Tracking      TrackingConfig      `yaml:"tracking"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Expiry        ExpiryConfig        `yaml:"expiry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the REST API listener settings.
type ServerConfig struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	APIKey              string   `yaml:"api_key"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// StorageConfig selects the Spark repository backend. Notifications and
// preferences live in SQL when a SQL backend is configured and in memory
// otherwise.
type StorageConfig struct {
	Type          string `yaml:"type"` // memory, sqlite, postgres, redis, dynamodb
	DatabaseURL   string `yaml:"database_url"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	ArchiveBucket string `yaml:"archive_bucket"`
	ArchivePrefix string `yaml:"archive_prefix"`
}

// GetAWSProfile returns the configured profile, or AWS_PROFILE.
func (c StorageConfig) GetAWSProfile() string {
	if c.AWSProfile != "" {
		return c.AWSProfile
	}
	return os.Getenv("AWS_PROFILE")
}

// TrackingConfig holds the beacon listener and queue settings.
type TrackingConfig struct {
	Host                 string   `yaml:"host"`
	Port                 int      `yaml:"port"`
	QueueURL             string   `yaml:"queue_url"` // empty means events are applied inline
	Region               string   `yaml:"region"`
	WaitTimeSeconds      int32    `yaml:"wait_time_seconds"`
	BatchSize            int32    `yaml:"batch_size"`
	Workers              int      `yaml:"workers"`
	AllowedRedirectHosts []string `yaml:"allowed_redirect_hosts"`
}

// Addr returns host:port.
func (t TrackingConfig) Addr() string { return fmt.Sprintf("%s:%d", t.Host, t.Port) }

// TrackerConfig tunes the tracker service.
type TrackerConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	DefaultTTLDays int `yaml:"default_ttl_days"`
}

// DefaultTTL returns the default Spark lifetime.
func (t TrackerConfig) DefaultTTL() time.Duration {
	return time.Duration(t.DefaultTTLDays) * 24 * time.Hour
}

// ScoringConfig overrides the engagement model. Omitted keys keep their
// defaults.
type ScoringConfig struct {
	Weights    engagement.Weights    `yaml:"weights"`
	Thresholds engagement.Thresholds `yaml:"thresholds"`
}

// Model returns the configured engagement model.
func (s ScoringConfig) Model() engagement.Model {
	return engagement.Model{Weights: s.Weights, Thresholds: s.Thresholds}
}

// NotificationsConfig configures delivery channels.
type NotificationsConfig struct {
	Enabled   bool                      `yaml:"enabled"`
	SES       SESConfig                 `yaml:"ses"`
	Push      PushConfig                `yaml:"push"`
	Templates map[string]TemplateConfig `yaml:"templates"` // keyed by notification type
}

// TemplateConfig is a Liquid title/message override.
type TemplateConfig struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// SESConfig holds the email channel credentials.
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// Enabled reports whether enough is configured to send email.
func (s SESConfig) Enabled() bool { return s.FromEmail != "" }

// PushConfig holds the push gateway webhook.
type PushConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Secret     string `yaml:"secret"`
	MaxRetries int    `yaml:"max_retries"`
}

// ExpiryConfig drives the expiry sweeper.
type ExpiryConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	BatchSize       int  `yaml:"batch_size"`
	LockTTLSeconds  int  `yaml:"lock_ttl_seconds"`
}

// Interval returns the sweep period.
func (e ExpiryConfig) Interval() time.Duration {
	return time.Duration(e.IntervalSeconds) * time.Second
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Defaults returns a configuration that runs a single in-memory node.
func Defaults() *Config {
	m := engagement.DefaultModel()
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Type:          "memory",
			SQLitePath:    "./data/spark.db",
			RedisPrefix:   "spark:",
			DynamoDBTable: "spark-engagement",
			AWSRegion:     "us-west-2",
			ArchivePrefix: "sparks/",
		},
		Tracking: TrackingConfig{
			Host:            "0.0.0.0",
			Port:            8081,
			Region:          "us-west-2",
			WaitTimeSeconds: 20,
			BatchSize:       10,
			Workers:         4,
		},
		Tracker: TrackerConfig{
			MaxAttempts:    5,
			DefaultTTLDays: 30,
		},
		Scoring: ScoringConfig{Weights: m.Weights, Thresholds: m.Thresholds},
		Notifications: NotificationsConfig{
			Enabled: true,
			SES:     SESConfig{Region: "us-west-2", FromName: "Spark"},
			Push:    PushConfig{MaxRetries: 3},
		},
		Expiry: ExpiryConfig{
			Enabled:         true,
			IntervalSeconds: 300,
			BatchSize:       200,
			LockTTLSeconds:  240,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over Defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Zeroes written explicitly in the file fall back to defaults.
	d := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = d.Tracking.Port
	}
	if cfg.Tracking.Workers <= 0 {
		cfg.Tracking.Workers = d.Tracking.Workers
	}
	if cfg.Tracking.BatchSize <= 0 || cfg.Tracking.BatchSize > 10 {
		cfg.Tracking.BatchSize = d.Tracking.BatchSize
	}
	if cfg.Tracker.MaxAttempts <= 0 {
		cfg.Tracker.MaxAttempts = d.Tracker.MaxAttempts
	}
	if cfg.Expiry.IntervalSeconds <= 0 {
		cfg.Expiry.IntervalSeconds = d.Expiry.IntervalSeconds
	}
	if cfg.Expiry.BatchSize <= 0 {
		cfg.Expiry.BatchSize = d.Expiry.BatchSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements of the storage backend.
func (c *Config) Validate() error {
	s := c.Storage
	switch s.Type {
	case "memory":
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite")
		}
	case "postgres":
		if s.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for postgres")
		}
	case "redis":
		if s.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for redis")
		}
	case "dynamodb":
		if s.DynamoDBTable == "" {
			return fmt.Errorf("storage.dynamodb_table is required for dynamodb")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", s.Type)
	}
	return nil
}

// DefaultPath returns SPARK_CONFIG when set, else config/config.yaml if it
// exists, else "" so LoadFromEnv starts from Defaults.
func DefaultPath() string {
	if p := os.Getenv("SPARK_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}
	return ""
}

// LoadFromEnv loads a .env file if present, then path (or Defaults when path
// is empty), then applies environment overrides. Secrets live in the
// environment in deployed containers.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			*dst = v
		}
	}

	str("SPARK_STORAGE_TYPE", &cfg.Storage.Type)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
		if cfg.Storage.Type == "memory" {
			cfg.Storage.Type = "postgres"
		}
	}
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Storage.RedisPassword)
	str("DYNAMODB_TABLE", &cfg.Storage.DynamoDBTable)
	str("AWS_REGION", &cfg.Storage.AWSRegion)
	str("ARCHIVE_BUCKET", &cfg.Storage.ArchiveBucket)

	num("PORT", &cfg.Server.Port)
	str("API_KEY", &cfg.Server.APIKey)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	num("TRACKING_PORT", &cfg.Tracking.Port)
	str("TRACKING_QUEUE_URL", &cfg.Tracking.QueueURL)

	str("AWS_SES_ACCESS_KEY", &cfg.Notifications.SES.AccessKey)
	str("AWS_SES_SECRET_KEY", &cfg.Notifications.SES.SecretKey)
	str("AWS_SES_REGION", &cfg.Notifications.SES.Region)
	str("SES_FROM_EMAIL", &cfg.Notifications.SES.FromEmail)
	str("PUSH_WEBHOOK_URL", &cfg.Notifications.Push.WebhookURL)
	str("PUSH_WEBHOOK_SECRET", &cfg.Notifications.Push.Secret)

	str("LOG_LEVEL", &cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

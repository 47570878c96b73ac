package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/engagement"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "127.0.0.1"
  allowed_origins: ["https://app.example.com"]

storage:
  type: "sqlite"
  sqlite_path: "./test-data/spark.db"

tracking:
  queue_url: "https://sqs.us-west-2.amazonaws.com/123/spark-events"
  workers: 8

tracker:
  max_attempts: 7
  default_ttl_days: 14

scoring:
  weights:
    click: 12
  thresholds:
    hot_score: 75

notifications:
  ses:
    from_email: "alerts@example.com"
  templates:
    content_opened:
      title: "{{ practice_name }} is reading"
      message: "{{ name }} opened it"

expiry:
  interval_seconds: 60
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Server
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)

	// Storage
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "./test-data/spark.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "spark:", cfg.Storage.RedisPrefix)

	// Tracking
	assert.Equal(t, 8, cfg.Tracking.Workers)
	assert.Equal(t, int32(10), cfg.Tracking.BatchSize)
	assert.Equal(t, 8081, cfg.Tracking.Port)

	// Tracker
	assert.Equal(t, 7, cfg.Tracker.MaxAttempts)
	assert.Equal(t, 14*24*time.Hour, cfg.Tracker.DefaultTTL())

	// Scoring overrides keep untouched defaults
	m := cfg.Scoring.Model()
	def := engagement.DefaultModel()
	assert.Equal(t, 12.0, m.Weights.Click)
	assert.Equal(t, def.Weights.Open, m.Weights.Open)
	assert.Equal(t, 75.0, m.Thresholds.HotScore)
	assert.Equal(t, def.Thresholds.WarmScore, m.Thresholds.WarmScore)

	// Notifications
	assert.True(t, cfg.Notifications.SES.Enabled())
	assert.Equal(t, "Spark", cfg.Notifications.SES.FromName)
	assert.Equal(t, "{{ name }} opened it", cfg.Notifications.Templates["content_opened"].Message)

	// Expiry
	assert.Equal(t, time.Minute, cfg.Expiry.Interval())
	assert.Equal(t, 200, cfg.Expiry.BatchSize)
	assert.True(t, cfg.Expiry.Enabled)
}

func TestLoad_ExplicitZeroesFallBack(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 0
tracking:
  batch_size: 50
tracker:
  max_attempts: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int32(10), cfg.Tracking.BatchSize, "SQS caps receives at 10")
	assert.Equal(t, 5, cfg.Tracker.MaxAttempts)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  type: cassandra\n"))
	assert.ErrorContains(t, err, "unknown storage.type")

	_, err = Load(writeConfig(t, "storage:\n  type: postgres\n"))
	assert.ErrorContains(t, err, "database_url")

	_, err = Load(writeConfig(t, "storage:\n  type: redis\n"))
	assert.ErrorContains(t, err, "redis_addr")
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 30*24*time.Hour, cfg.Tracker.DefaultTTL())
	assert.Equal(t, engagement.DefaultModel(), cfg.Scoring.Model())
	assert.Equal(t, "0.0.0.0:8081", cfg.Tracking.Addr())
	assert.False(t, cfg.Notifications.SES.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://spark@localhost/spark?sslmode=disable")
	t.Setenv("PORT", "7070")
	t.Setenv("TRACKING_QUEUE_URL", "https://sqs.example/queue")
	t.Setenv("SES_FROM_EMAIL", "alerts@example.com")
	t.Setenv("PUSH_WEBHOOK_URL", "https://push.example/hook")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Type, "DATABASE_URL promotes the memory default")
	assert.Equal(t, "postgres://spark@localhost/spark?sslmode=disable", cfg.Storage.DatabaseURL)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://sqs.example/queue", cfg.Tracking.QueueURL)
	assert.Equal(t, "alerts@example.com", cfg.Notifications.SES.FromEmail)
	assert.Equal(t, "https://push.example/hook", cfg.Notifications.Push.WebhookURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnv_ExplicitTypeWins(t *testing.T) {
	t.Setenv("SPARK_STORAGE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://ignored")
	t.Setenv("PORT", "not-a-number")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestGetAWSProfile(t *testing.T) {
	t.Setenv("AWS_PROFILE", "from-env")
	assert.Equal(t, "from-env", StorageConfig{}.GetAWSProfile())
	assert.Equal(t, "explicit", StorageConfig{AWSProfile: "explicit"}.GetAWSProfile())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("SPARK_CONFIG", "/etc/spark/config.yaml")
	assert.Equal(t, "/etc/spark/config.yaml", DefaultPath())

	t.Setenv("SPARK_CONFIG", "")
	t.Chdir(t.TempDir())
	assert.Equal(t, "", DefaultPath())

	require.NoError(t, os.Mkdir("config", 0755))
	require.NoError(t, os.WriteFile("config/config.yaml", []byte("server:\n  port: 9000\n"), 0644))
	assert.Equal(t, "config/config.yaml", DefaultPath())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `server:
  port: ":9090"
  mode: "release"
  read_timeout: 15s
  write_timeout: 15s

database:
  host: "db.internal"
  port: 5432
  user: "warbler"
  password: "secret"
  dbname: "warbler_test"
  sslmode: "disable"

redis:
  host: "cache.internal"
  port: 6379

kafka:
  brokers:
    - "broker-1:9092"
    - "broker-2:9092"
  topics:
    activity_events: "activity-events"

jwt:
  secret: "test-secret"
  expire_time: 24h

feed:
  default_limit: 10
  max_limit: 50
  cache_ttl: 30s

moderation:
  extra_patterns:
    - '\bspamword\b'

activity:
  consumer_group: "test-group"
  retention_days: 30
  sweep_interval: 10m
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "activity-events", cfg.Kafka.Topics.ActivityEvents)

	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)

	assert.Equal(t, 10, cfg.Feed.DefaultLimit)
	assert.Equal(t, 50, cfg.Feed.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Feed.CacheTTL)

	assert.Equal(t, []string{`\bspamword\b`}, cfg.Moderation.ExtraPatterns)

	assert.Equal(t, "test-group", cfg.Activity.ConsumerGroup)
	assert.Equal(t, 30, cfg.Activity.RetentionDays)
	assert.Equal(t, 10*time.Minute, cfg.Activity.SweepInterval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "warbler",
		Password: "secret",
		DBName:   "warbler_test",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db.internal port=5432 user=warbler password=secret dbname=warbler_test sslmode=disable", cfg.DSN())
}

func TestRedisAddr(t *testing.T) {
	cfg := &RedisConfig{Host: "cache.internal", Port: 6379}
	assert.Equal(t, "cache.internal:6379", cfg.Addr())
}

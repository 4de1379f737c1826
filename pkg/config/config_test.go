package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, []string{"localhost:9042"}, cfg.ScyllaHosts)
	assert.Equal(t, "chat", cfg.ScyllaKeyspace)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "chat-messages", cfg.KafkaTopic)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.EqualValues(t, 0, cfg.SnowflakeNode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_JWT_SECRET")
}

func TestLoadSplitsLists(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "s3cret")
	t.Setenv("RELAY_SCYLLA_HOSTS", "db1:9042, db2:9042 ,,db3:9042")
	t.Setenv("RELAY_KAFKA_BROKERS", "broker:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"db1:9042", "db2:9042", "db3:9042"}, cfg.ScyllaHosts)
	assert.Equal(t, []string{"broker:9092"}, cfg.KafkaBrokers)
}

func TestLoadParsesDuration(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "s3cret")
	t.Setenv("RELAY_HEARTBEAT_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestLoadRejectsNonPositiveHeartbeat(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "s3cret")
	t.Setenv("RELAY_HEARTBEAT_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_HEARTBEAT_INTERVAL")
}

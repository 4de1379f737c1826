// Package config loads relay settings from the environment with the RELAY_
// prefix (e.g. RELAY_ADDR, RELAY_JWT_SECRET).
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Addr      string
	JWTSecret string

	ScyllaHosts    []string
	ScyllaKeyspace string

	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string

	// Clients are expected to heartbeat at this interval; idle connections
	// are reaped after twice this window.
	HeartbeatInterval time.Duration

	SnowflakeNode int64

	LogLevel string
	LogJSON  bool
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("relay")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("addr", ":8080")
	v.SetDefault("scylla_hosts", "localhost:9042")
	v.SetDefault("scylla_keyspace", "chat")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "chat-messages")
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("snowflake_node", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	cfg := &Config{
		Addr:              v.GetString("addr"),
		JWTSecret:         v.GetString("jwt_secret"),
		ScyllaHosts:       splitList(v.GetString("scylla_hosts")),
		ScyllaKeyspace:    v.GetString("scylla_keyspace"),
		RedisAddr:         v.GetString("redis_addr"),
		KafkaBrokers:      splitList(v.GetString("kafka_brokers")),
		KafkaTopic:        v.GetString("kafka_topic"),
		HeartbeatInterval: v.GetDuration("heartbeat_interval"),
		SnowflakeNode:     v.GetInt64("snowflake_node"),
		LogLevel:          v.GetString("log_level"),
		LogJSON:           v.GetBool("log_json"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("RELAY_JWT_SECRET is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, errors.New("RELAY_HEARTBEAT_INTERVAL must be positive")
	}
	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

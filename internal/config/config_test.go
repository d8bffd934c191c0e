package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c := Load()
	if c.RedisHost != "localhost" || c.RedisPort != "6379" {
		t.Fatalf("unexpected redis defaults: %+v", c)
	}
	if c.DriverStream != "driver_position_stream" || c.OrderStream != "order_stream" {
		t.Fatalf("unexpected stream defaults: %+v", c)
	}
	if c.ProduceInterval != time.Second {
		t.Fatalf("expected 1s produce interval, got %v", c.ProduceInterval)
	}
	if c.RedisAddr() != "localhost:6379" {
		t.Fatalf("unexpected RedisAddr: %s", c.RedisAddr())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("PRODUCE_INTERVAL", "0.5")
	t.Setenv("ORDER_REDIS_STREAM", "orders-v2")

	c := Load()
	if c.RedisAddr() != "redis.internal:7000" {
		t.Fatalf("unexpected RedisAddr: %s", c.RedisAddr())
	}
	if c.ProduceInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms produce interval, got %v", c.ProduceInterval)
	}
	if c.OrderStream != "orders-v2" {
		t.Fatalf("expected order stream override, got %s", c.OrderStream)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"REDIS_STREAM", "ORDER_REDIS_STREAM", "PRODUCE_INTERVAL",
		"LOG_LEVEL", "METRICS_ADDR", "CASSANDRA_HOSTS", "CASSANDRA_KEYSPACE",
	} {
		t.Cleanup(func(k string) func() { return func() { os.Unsetenv(k) } }(key))
		os.Unsetenv(key)
	}
}

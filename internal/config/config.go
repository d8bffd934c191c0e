// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the environment-variable surface recognized by the
// pipeline. It is deliberately thin: entry points read a Config once at
// startup and pass it down explicitly, rather than reading the environment
// from deep inside business logic.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of environment-driven knobs named in the external
// interface contract, plus the ambient additions SPEC_FULL adds (logging,
// metrics, the durable-store connection).
type Config struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	DriverStream string
	OrderStream  string

	ProduceInterval time.Duration

	BasePrice float64

	LogLevel    string
	MetricsAddr string

	CassandraHosts    string
	CassandraKeyspace string
}

// Load reads a .env file if present (missing is not an error — matches the
// source's own best-effort load_dotenv() behavior) and then applies
// environment variables over the defaults below.
func Load() Config {
	_ = godotenv.Load() // optional; ignored if absent

	return Config{
		RedisHost:     getString("REDIS_HOST", "localhost"),
		RedisPort:     getString("REDIS_PORT", "6379"),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		DriverStream: getString("REDIS_STREAM", "driver_position_stream"),
		OrderStream:  getString("ORDER_REDIS_STREAM", "order_stream"),

		ProduceInterval: getSeconds("PRODUCE_INTERVAL", 1.0),

		BasePrice: getFloat("BASE_PRICE", 1.0),

		LogLevel:    getString("LOG_LEVEL", "info"),
		MetricsAddr: getString("METRICS_ADDR", ""),

		CassandraHosts:    getString("CASSANDRA_HOSTS", "127.0.0.1"),
		CassandraKeyspace: getString("CASSANDRA_KEYSPACE", "surge"),
	}
}

// RedisAddr returns the "host:port" address go-redis expects.
func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getSeconds(key string, def float64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return durationFromSeconds(def)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return durationFromSeconds(def)
	}
	return durationFromSeconds(f)
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

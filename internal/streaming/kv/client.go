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

// Package kv provides scoped acquisition and release of a connection to the
// key-value/stream store (Redis), and the minimal interface surface the
// stream processor, aggregator, producer and windowed query need from it.
//
// This mirrors the teacher's persistence.RedisEvaler seam: callers depend on
// a small interface rather than *redis.Client directly, so tests can supply
// a fake without a live Redis.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the subset of github.com/redis/go-redis/v9's Cmdable that
// the pipeline depends on: stream append/read/ack/claim/pending, and hash
// increment/read for counter buckets.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Pipeline() redis.Pipeliner
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config dials a single Redis endpoint.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Factory scopes acquisition and release of StreamClient connections. The
// run loop that owns a Factory-built client is responsible for calling
// Close on every exit path (normal, signal, fatal) — the cmd entry points
// defer it right after Open.
type Factory struct {
	cfg Config
}

// NewFactory builds a Factory for the given connection config.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// Open dials the store and verifies connectivity with a bounded PING. The
// returned client satisfies StreamClient; callers own its lifecycle and
// must Close it.
func (f *Factory) Open(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.cfg.Addr,
		Password: f.cfg.Password,
		DB:       f.cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: connect to %s: %w", f.cfg.Addr, err)
	}
	return client, nil
}

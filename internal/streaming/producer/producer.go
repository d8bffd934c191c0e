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

// Package producer appends synthetic events to a stream at a fixed
// interval. The event shape itself is injected (Generate), so the same loop
// drives both the driver-position and order producers.
package producer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/streaming/kv"
)

// Generate produces the flat field map for the next event to append.
type Generate func() map[string]string

// Config parameterizes one Producer.
type Config struct {
	Stream      string
	Interval    time.Duration
	MaxAttempts int // total XADD attempts (first try included) before giving up on one event
}

// Producer appends events to a single stream on a ticker, retrying
// transient append failures with doubling backoff before dropping an event
// and moving on — a dropped append is logged, not fatal, since the producer
// is a synthetic load generator rather than a system of record.
type Producer struct {
	client   kv.StreamClient
	cfg      Config
	generate Generate
	log      *logrus.Entry
}

// New builds a Producer.
func New(client kv.StreamClient, cfg Config, generate Generate, log *logrus.Entry) *Producer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Producer{client: client, cfg: cfg, generate: generate, log: log}
}

// Run appends events until ctx is canceled. On cancellation it finishes any
// in-flight append, skips the next one, logs, and returns nil — a clean
// cooperative shutdown rather than an abrupt exit.
func (p *Producer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Producer stopped")
			return nil
		case <-ticker.C:
			if err := p.appendOnce(ctx); err != nil {
				p.log.WithError(err).Warn("event append failed after retries, skipping")
			}
		}
	}
}

func (p *Producer) appendOnce(ctx context.Context) error {
	fields := p.generate()

	var lastErr error
	backoff := 50 * time.Millisecond
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.cfg.Stream,
			Values: fields,
		}).Err()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < p.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return lastErr
}

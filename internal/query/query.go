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

// Package query computes windowed cell counts by summing minute-bucket
// hashes over the trailing W minutes, anchored at wall-clock now. The
// window is measured against the query's own clock, not the event's
// timestamp: an event that lands outside the window by the time it is
// queried is silently absent from the sum, never specially surfaced.
//
// Grounded in the source's data_aggregator_service.py / driver_position
// service.py: generate W minute-key strings backward from utcnow(),
// pipeline an HGETALL per key, sum per cell id across the results.
package query

import (
	"context"
	"strconv"
	"time"

	"github.com/etalazz/surgepipe/internal/streaming/aggregator"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
)

// Clock returns the current instant. Injected so tests can fix "now"
// instead of depending on wall-clock time.
type Clock func() time.Time

// Window sums minute-bucket counters for one counter family (driver or
// order) over a trailing time window.
type Window struct {
	client        kv.StreamClient
	keyPrefix     string
	windowMinutes int
	now           Clock
}

// New builds a Window. windowMinutes must be >= 1.
func New(client kv.StreamClient, keyPrefix string, windowMinutes int, now Clock) *Window {
	if windowMinutes < 1 {
		windowMinutes = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Window{client: client, keyPrefix: keyPrefix, windowMinutes: windowMinutes, now: now}
}

// Counts returns the summed per-cell counts for resolution over the
// trailing window, as of the Window's clock. Cells absent from every
// bucket are simply absent from the result, not present with a zero.
func (w *Window) Counts(ctx context.Context, resolution int) (map[string]int64, error) {
	keys := w.minuteKeys(resolution)

	pipe := w.client.Pipeline()
	cmds := make([]*pipeResult, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, &pipeResult{key: key, cmd: pipe.HGetAll(ctx, key)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, r := range cmds {
		fields, err := r.cmd.Result()
		if err != nil {
			continue // missing bucket == no events that minute, not an error
		}
		for cellID, rawCount := range fields {
			totals[cellID] += parseCount(rawCount)
		}
	}
	return totals, nil
}

type pipeResult struct {
	key string
	cmd interface{ Result() (map[string]string, error) }
}

// minuteKeys returns the bucket keys for the trailing windowMinutes minutes,
// including the current minute, oldest first.
func (w *Window) minuteKeys(resolution int) []string {
	now := w.now().UTC()
	keys := make([]string, 0, w.windowMinutes)
	for i := w.windowMinutes - 1; i >= 0; i-- {
		minute := now.Add(-time.Duration(i) * time.Minute)
		timeKey := minute.Format("2006-01-02T15:04")
		keys = append(keys, aggregator.BucketKey(w.keyPrefix, timeKey, resolution))
	}
	return keys
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

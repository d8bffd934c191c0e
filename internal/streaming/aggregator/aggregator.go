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

// Package aggregator implements the processor.Handler that turns one
// decoded driver-position or order event into a fan-out of per-resolution
// HINCRBY writes against minute-bucket counter hashes.
//
// It intentionally performs no deduplication: a message redelivered after a
// reclaim (or a producer retry that double-appends) is counted again. The
// windowed query layer already treats the counters as approximate, at-least-
// once totals, so correctness here means "every successfully acked message
// is reflected exactly once, and no message is silently dropped" — not
// exactly-once arithmetic. That tolerance covers double-counting, never a
// vanished count: HandleMessage only returns nil once its own increments
// have been durably committed to Redis (see BatchStore.FlushDirty), so the
// processor never acks a message whose fan-out didn't land.
//
// Grounded in the source's redis_aggregator.py: one pipelined HINCRBY per
// resolution, keyed "{prefix}:{time_key}:{resolution}".
package aggregator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/events"
	"github.com/etalazz/surgepipe/internal/geo"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
)

// Extractor pulls the coordinates and timestamp this aggregator cares about
// out of a decoded event. Driver and order handlers differ only in this
// function, so one Aggregator type serves both streams.
type Extractor func(fields map[string]string) (lat, lon float64, timestamp string, err error)

// DriverExtractor decodes a driver-position stream message.
func DriverExtractor(fields map[string]string) (float64, float64, string, error) {
	d, err := events.ParseDriverPosition(fields)
	if err != nil {
		return 0, 0, "", err
	}
	return d.Latitude, d.Longitude, d.Timestamp, nil
}

// OrderExtractor decodes an order stream message.
func OrderExtractor(fields map[string]string) (float64, float64, string, error) {
	o, err := events.ParseOrder(fields)
	if err != nil {
		return 0, 0, "", err
	}
	return o.Latitude, o.Longitude, o.Timestamp, nil
}

// Aggregator increments per-cell, per-resolution, per-minute counters for
// one event stream. Increments land in a local BatchStore, then are flushed
// to Redis synchronously before HandleMessage returns (see FlushDirty).
type Aggregator struct {
	batch     *BatchStore
	client    kv.StreamClient
	indexer   *geo.Indexer
	keyPrefix string
	extract   Extractor
	log       *logrus.Entry
}

// New builds an Aggregator backed by batch, writing through client.
// keyPrefix names the counter family, e.g. "driver_counts" or
// "order_counts"; it becomes the first segment of every bucket key.
func New(batch *BatchStore, client kv.StreamClient, indexer *geo.Indexer, keyPrefix string, extract Extractor, log *logrus.Entry) *Aggregator {
	return &Aggregator{batch: batch, client: client, indexer: indexer, keyPrefix: keyPrefix, extract: extract, log: log}
}

// HandleMessage implements processor.Handler. A parse or coordinate error is
// a malformed-event outcome: the message is left un-acked by the caller.
// On the success path, the per-resolution increments are written to Redis
// and committed before this returns nil — the caller only acks after that
// commit succeeds, so a crash never leaves an acked message's fan-out
// unwritten.
func (a *Aggregator) HandleMessage(ctx context.Context, id string, fields map[string]string) error {
	lat, lon, timestamp, err := a.extract(fields)
	if err != nil {
		return fmt.Errorf("aggregator: decode message %s: %w", id, err)
	}

	timeKey, err := deriveTimeKey(timestamp)
	if err != nil {
		return fmt.Errorf("aggregator: message %s: %w", id, err)
	}

	cells, err := a.indexer.CellsForPoint(lat, lon)
	if err != nil {
		return fmt.Errorf("aggregator: message %s: %w", id, err)
	}

	resolutions := a.indexer.Resolutions()
	keys := make([]cellKey, 0, len(resolutions))
	for _, res := range resolutions {
		key := BucketKey(a.keyPrefix, timeKey, res)
		cellID := cells[res]
		a.batch.Add(key, cellID, 1)
		keys = append(keys, cellKey{bucket: key, cellID: cellID})
	}

	if err := a.batch.FlushDirty(ctx, a.client, keys); err != nil {
		return fmt.Errorf("aggregator: message %s: commit increments: %w", id, err)
	}
	return nil
}

// BucketKey builds the minute-bucket hash key for one resolution:
// "{prefix}:{time_key}:{resolution}".
func BucketKey(prefix, timeKey string, resolution int) string {
	return fmt.Sprintf("%s:%s:%d", prefix, timeKey, resolution)
}

func deriveTimeKey(timestamp string) (string, error) {
	if len(timestamp) < 16 {
		return "", fmt.Errorf("timestamp %q too short to derive a minute bucket", timestamp)
	}
	return timestamp[:16], nil
}

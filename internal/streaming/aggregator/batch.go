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

package aggregator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/pkg/vsa"
)

// cellKey identifies one (bucket key, cell id) counter.
type cellKey struct {
	bucket string
	cellID string
}

// managedCounter pairs a VSA instance with the wall-clock time it was last
// touched, the way the rate limiter's managedVSA tracks idle counters for
// eviction.
type managedCounter struct {
	instance     *vsa.VSA
	lastAccessed atomic.Int64
}

func (m *managedCounter) touch() {
	m.lastAccessed.Store(time.Now().UnixNano())
}

// BatchStore accumulates per-cell increments locally, coalescing concurrent
// Adds against the same (bucket, cell) pair into one VSA-tracked net delta.
// The aggregator flushes the delta for one message's own keys synchronously
// before acking (see FlushDirty) — the stream-ack path never depends on the
// background FlushWorker. A burst of concurrent handlers touching the same
// cell still collapses into a single HINCRBY: whichever handler's flush
// runs first commits the accumulated net, and any handler whose own
// increment was already included in that commit sees net 0 and writes
// nothing, the same write-reduction trade the rate limiter's VSA made for
// consumed budget — here applied to counted occurrences instead.
type BatchStore struct {
	counters   sync.Map // cellKey -> *managedCounter
	vsaOptions vsa.Options
}

// NewBatchStore builds an empty BatchStore.
func NewBatchStore(opts vsa.Options) *BatchStore {
	return &BatchStore{vsaOptions: opts}
}

// Add records one occurrence of cellID within bucket.
func (s *BatchStore) Add(bucket, cellID string, n int64) {
	mc := s.getOrCreate(cellKey{bucket: bucket, cellID: cellID})
	mc.instance.Update(n)
	mc.touch()
}

func (s *BatchStore) getOrCreate(key cellKey) *managedCounter {
	if v, ok := s.counters.Load(key); ok {
		return v.(*managedCounter)
	}
	mc := &managedCounter{instance: vsa.NewWithOptions(0, s.vsaOptions)}
	mc.touch()
	actual, _ := s.counters.LoadOrStore(key, mc)
	return actual.(*managedCounter)
}

// forEach visits every tracked counter. fn must not block for long; it runs
// under the flush loop's cadence.
func (s *BatchStore) forEach(fn func(key cellKey, mc *managedCounter)) {
	s.counters.Range(func(k, v interface{}) bool {
		fn(k.(cellKey), v.(*managedCounter))
		return true
	})
}

// delete evicts a counter that has sat idle past the configured age,
// mirroring the rate limiter's store eviction sweep.
func (s *BatchStore) delete(key cellKey) {
	if v, ok := s.counters.LoadAndDelete(key); ok {
		v.(*managedCounter).instance.Close()
	}
}

// pendingWrite is one key's committed-but-not-yet-flushed delta.
type pendingWrite struct {
	key   cellKey
	mc    *managedCounter
	delta int64
}

// collect gathers the non-zero net delta for each of keys, without mutating
// any counter. Keys with nothing accumulated (or not yet created) are
// skipped, not errored — a message whose cells were already flushed by a
// concurrent handler has nothing left to write.
func (s *BatchStore) collect(keys []cellKey, threshold int64) []pendingWrite {
	var batch []pendingWrite
	for _, key := range keys {
		v, ok := s.counters.Load(key)
		if !ok {
			continue
		}
		mc := v.(*managedCounter)
		if ready, net := mc.instance.CheckCommit(threshold); ready && net != 0 {
			batch = append(batch, pendingWrite{key: key, mc: mc, delta: net})
		}
	}
	return batch
}

// writeBatch pipelines one HINCRBY per pending write and, only if the whole
// pipeline commits, marks each counter's delta as committed. A failed write
// leaves every counter's net untouched so the next attempt retries the full
// amount.
func writeBatch(ctx context.Context, client kv.StreamClient, batch []pendingWrite) error {
	if len(batch) == 0 {
		return nil
	}
	pipe := client.Pipeline()
	for _, p := range batch {
		pipe.HIncrBy(ctx, p.key.bucket, p.key.cellID, p.delta)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flush %d keys to redis: %w", len(batch), err)
	}
	for _, p := range batch {
		p.mc.instance.Commit(p.delta)
	}
	return nil
}

// FlushDirty synchronously writes the accumulated deltas for keys to Redis
// and commits them only once the pipelined write succeeds. This is the
// durability boundary the stream processor's ack decision relies on: the
// aggregator calls this before returning from HandleMessage, so a message's
// own increments are durably reflected in Redis before it is ever acked. A
// write failure is returned as-is, leaving the message unacked so the
// processor redelivers it and the same increments are retried.
func (s *BatchStore) FlushDirty(ctx context.Context, client kv.StreamClient, keys []cellKey) error {
	return writeBatch(ctx, client, s.collect(keys, 1))
}

// FlushWorkerConfig parameterizes one FlushWorker.
type FlushWorkerConfig struct {
	FlushInterval time.Duration
	FlushEvery    int64 // commit threshold: flush a counter once its net reaches this
	EvictionAge   time.Duration
}

// FlushWorker is a background backstop, not the durability path: every
// message's own increments are already flushed synchronously by
// BatchStore.FlushDirty before the processor acks it (see aggregator.go).
// FlushWorker only (a) retries any delta a synchronous flush failed to
// write, so it does not sit accumulated until the next event happens to
// touch the same cell, and (b) evicts counters that have gone idle, so the
// counters map does not grow without bound. Adapted from the rate
// limiter's core.Worker commit/eviction loops.
type FlushWorker struct {
	store  *BatchStore
	client kv.StreamClient
	cfg    FlushWorkerConfig
	log    *logrus.Entry

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// NewFlushWorker builds a FlushWorker over store, writing through client.
func NewFlushWorker(store *BatchStore, client kv.StreamClient, cfg FlushWorkerConfig, log *logrus.Entry) *FlushWorker {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 200 * time.Millisecond
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 1
	}
	return &FlushWorker{store: store, client: client, cfg: cfg, log: log, stopChan: make(chan struct{})}
}

// Start launches the background flush and eviction loop.
func (w *FlushWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop to exit and performs one final, unconditional
// flush of every counter so no accumulated-but-unflushed delta is lost on
// shutdown.
func (w *FlushWorker) Stop(ctx context.Context) {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
	w.flushCycle(ctx, 0)
}

func (w *FlushWorker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	evictTicker := time.NewTicker(max(w.cfg.EvictionAge/2, time.Second))
	defer evictTicker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushCycle(ctx, w.cfg.FlushEvery)
		case <-evictTicker.C:
			w.evictIdle()
		}
	}
}

func (w *FlushWorker) flushCycle(ctx context.Context, threshold int64) {
	var keys []cellKey
	w.store.forEach(func(key cellKey, _ *managedCounter) {
		keys = append(keys, key)
	})
	batch := w.store.collect(keys, threshold)
	if err := writeBatch(ctx, w.client, batch); err != nil {
		w.log.WithError(err).Warn("backstop flush to redis failed, deltas remain accumulated for retry")
	}
}

func (w *FlushWorker) evictIdle() {
	if w.cfg.EvictionAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.cfg.EvictionAge).UnixNano()
	w.store.forEach(func(key cellKey, mc *managedCounter) {
		if mc.lastAccessed.Load() < cutoff {
			if ready, net := mc.instance.CheckCommit(1); !ready && net == 0 {
				w.store.delete(key)
			}
		}
	})
}

func max(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

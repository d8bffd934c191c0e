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

// Package main is the entry point for the stream aggregator: it consumes
// the driver-position and order streams as two consumer groups against the
// same Redis instance, and increments the H3-cell minute-bucket counters
// each one feeds the windowed query and surge services.
package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/etalazz/surgepipe/internal/config"
	"github.com/etalazz/surgepipe/internal/geo"
	"github.com/etalazz/surgepipe/internal/streaming/aggregator"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/internal/streaming/processor"
	"github.com/etalazz/surgepipe/internal/telemetry/logging"
	"github.com/etalazz/surgepipe/internal/telemetry/metrics"
	"github.com/etalazz/surgepipe/pkg/vsa"
)

func main() {
	consumerName := flag.String("consumer", "aggregator-1", "Consumer name within the aggregator consumer group")
	blockTimeout := flag.Duration("block_timeout", 5*time.Second, "XREADGROUP BLOCK duration")
	batchSize := flag.Int64("batch_size", 100, "Messages requested per XREADGROUP call")
	minIdle := flag.Duration("min_idle", time.Minute, "Minimum idle time before a pending message is eligible for reclaim")
	reclaimEvery := flag.Duration("reclaim_every", 30*time.Second, "How often to run a stale-message reclaim pass")
	flushInterval := flag.Duration("flush_interval", 200*time.Millisecond, "How often the local batch accumulator is flushed to Redis")
	flushEvictionAge := flag.Duration("flush_eviction_age", 10*time.Minute, "How long an idle local counter is kept before it is evicted")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "aggregator")

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.WithError(err).Warn("metrics server exited")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := kv.NewFactory(kv.Config{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword, DB: cfg.RedisDB})
	client, err := factory.Open(ctx)
	if err != nil {
		log.WithError(err).Fatal("could not connect to redis")
	}
	defer client.Close()

	indexer := geo.NewIndexer(geo.DefaultResolutions)

	batch := aggregator.NewBatchStore(vsa.Options{})
	flusher := aggregator.NewFlushWorker(batch, client, aggregator.FlushWorkerConfig{
		FlushInterval: *flushInterval,
		FlushEvery:    1,
		EvictionAge:   *flushEvictionAge,
	}, log.WithField("component", "flush_worker"))
	flusher.Start(ctx)

	var wg sync.WaitGroup
	runStream := func(streamName, group, keyPrefix string, extract aggregator.Extractor) {
		defer wg.Done()
		handler := aggregator.New(batch, client, indexer, keyPrefix, extract, log.WithField("stream", streamName))
		p := processor.New(client, processor.Config{
			Stream:        streamName,
			Group:         group,
			Consumer:      *consumerName,
			BlockTimeout:  *blockTimeout,
			BatchSize:     *batchSize,
			MinIdleTime:   *minIdle,
			ReclaimEvery:  *reclaimEvery,
			ReclaimBudget: 100,
		}, log.WithField("stream", streamName), handler)
		if err := p.Run(ctx); err != nil {
			log.WithError(err).WithField("stream", streamName).Fatal("aggregator loop terminated")
		}
	}

	wg.Add(2)
	go runStream(cfg.DriverStream, "driver_position_consumer_group", "driver_counts", aggregator.DriverExtractor)
	go runStream(cfg.OrderStream, "order_consumer_group", "order_counts", aggregator.OrderExtractor)

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for in-flight batches to finish")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	flusher.Stop(flushCtx)
	log.Info("aggregator stopped")
}

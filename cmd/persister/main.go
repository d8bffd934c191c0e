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

// Package main is the entry point for the stream persister: it consumes the
// driver-position and order streams as a second, independent consumer
// group and writes every event to the durable columnar store.
package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/etalazz/surgepipe/internal/config"
	"github.com/etalazz/surgepipe/internal/store/columnar"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/internal/streaming/persister"
	"github.com/etalazz/surgepipe/internal/streaming/processor"
	"github.com/etalazz/surgepipe/internal/telemetry/logging"
	"github.com/etalazz/surgepipe/internal/telemetry/metrics"
)

func main() {
	consumerName := flag.String("consumer", "persister-1", "Consumer name within the persister consumer group")
	storeAdapter := flag.String("store", "mock", "Durable store adapter: mock or cassandra")
	blockTimeout := flag.Duration("block_timeout", 5*time.Second, "XREADGROUP BLOCK duration")
	batchSize := flag.Int64("batch_size", 100, "Messages requested per XREADGROUP call")
	minIdle := flag.Duration("min_idle", time.Minute, "Minimum idle time before a pending message is eligible for reclaim")
	reclaimEvery := flag.Duration("reclaim_every", 30*time.Second, "How often to run a stale-message reclaim pass")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "persister")

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

	store, err := columnar.Build(*storeAdapter, columnar.BuildOptions{
		CassandraHosts:    cfg.CassandraHosts,
		CassandraKeyspace: cfg.CassandraKeyspace,
	}, log.WithField("component", "columnar"))
	if err != nil {
		log.WithError(err).Fatal("could not build durable store")
	}
	defer store.Close()

	var wg sync.WaitGroup
	runStream := func(streamName, group string, kind persister.Kind) {
		defer wg.Done()
		handler := persister.New(store, kind, log.WithField("stream", streamName))
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
			log.WithError(err).WithField("stream", streamName).Fatal("persister loop terminated")
		}
	}

	wg.Add(2)
	go runStream(cfg.DriverStream, "driver_position_persist_consumer_group", persister.DriverPositions)
	go runStream(cfg.OrderStream, "order_persist_consumer_group", persister.Orders)

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for in-flight batches to finish")
	wg.Wait()
	log.Info("persister stopped")
}

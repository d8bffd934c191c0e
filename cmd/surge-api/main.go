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

// Package main is the entry point for the surge-price reader: it builds
// the windowed query and surge services over the live counters and prints
// a snapshot of the surge map on a schedule. There is no HTTP endpoint
// here; the api.Service it wires is meant to be embedded directly by
// whatever outer surface a deployment chooses to put in front of it.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	surgeapi "github.com/etalazz/surgepipe/internal/api"
	"github.com/etalazz/surgepipe/internal/config"
	"github.com/etalazz/surgepipe/internal/query"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/internal/surge"
	"github.com/etalazz/surgepipe/internal/telemetry/logging"
	"github.com/etalazz/surgepipe/internal/telemetry/metrics"
)

func main() {
	windowMinutes := flag.Int("window_minutes", 5, "Trailing window, in minutes, summed for each query")
	resolution := flag.Int("resolution", 8, "H3 resolution to report surge prices at")
	snapshotEvery := flag.Duration("snapshot_every", 30*time.Second, "How often to log a surge-map snapshot")
	basePrice := flag.Float64("base_price", 0, "Pre-surge unit price multiplier is applied to; 0 defers to BASE_PRICE/config default")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "surge-api")

	price := cfg.BasePrice
	if *basePrice > 0 {
		price = *basePrice
	}

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

	drivers := query.New(client, "driver_counts", *windowMinutes, nil)
	orders := query.New(client, "order_counts", *windowMinutes, nil)
	calculator := surge.New(drivers, orders, price)
	service := surgeapi.New(drivers, orders, calculator)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.WithError(err).Fatal("could not build scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(*snapshotEvery),
		gocron.NewTask(func() { logSnapshot(ctx, service, *resolution, log) }),
	)
	if err != nil {
		log.WithError(err).Fatal("could not schedule snapshot job")
	}

	scheduler.Start()
	log.WithField("every", snapshotEvery.String()).Info("surge snapshot scheduler started")

	<-ctx.Done()
	log.Info("shutdown signal received")
	if err := scheduler.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown reported an error")
	}
	log.Info("surge-api stopped")
}

func logSnapshot(ctx context.Context, service *surgeapi.Service, resolution int, log *logrus.Entry) {
	cells, err := service.SurgePrice(ctx, resolution)
	if err != nil {
		log.WithError(err).Warn("surge snapshot failed")
		return
	}
	log.WithFields(logrus.Fields{
		"resolution": resolution,
		"cell_count": len(cells),
	}).Info("surge snapshot")
	for _, cell := range cells {
		log.WithFields(logrus.Fields{
			"cell_id":      cell.CellID,
			"driver_count": cell.DriverCount,
			"order_count":  cell.OrderCount,
			"ratio":        cell.Ratio,
			"multiplier":   cell.Multiplier,
			"price":        cell.Price,
		}).Debug("cell surge")
	}
}

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

// Package main is the entry point for the synthetic load producer: it
// appends driver-position and order events to their streams at a fixed
// interval, jittered around a configurable center point, for exercising
// the rest of the pipeline without a real fleet of drivers.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/etalazz/surgepipe/internal/config"
	"github.com/etalazz/surgepipe/internal/events"
	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/internal/streaming/producer"
	"github.com/etalazz/surgepipe/internal/telemetry/logging"
)

func main() {
	centerLat := flag.Float64("center_lat", 37.7749, "Center latitude to jitter synthetic events around")
	centerLon := flag.Float64("center_lon", -122.4194, "Center longitude to jitter synthetic events around")
	jitterDegrees := flag.Float64("jitter", 0.05, "Max +/- degrees of jitter applied to the center point")
	driverCount := flag.Int("drivers", 25, "Number of distinct synthetic driver ids to cycle through")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "producer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := kv.NewFactory(kv.Config{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword, DB: cfg.RedisDB})
	client, err := factory.Open(ctx)
	if err != nil {
		log.WithError(err).Fatal("could not connect to redis")
	}
	defer client.Close()

	driverIDs := make([]string, *driverCount)
	for i := range driverIDs {
		driverIDs[i] = "driver-" + strconv.Itoa(i)
	}

	jitter := func() (float64, float64) {
		lat := *centerLat + (rand.Float64()*2-1)**jitterDegrees
		lon := *centerLon + (rand.Float64()*2-1)**jitterDegrees
		return lat, lon
	}

	driverGen := func() map[string]string {
		lat, lon := jitter()
		pos := events.DriverPosition{
			DriverID:  driverIDs[rand.Intn(len(driverIDs))],
			Latitude:  lat,
			Longitude: lon,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		return pos.ToFields()
	}

	orderGen := func() map[string]string {
		lat, lon := jitter()
		order := events.Order{
			OrderID:    uuid.NewString(),
			CustomerID: uuid.NewString(),
			OrderValue: 5 + rand.Float64()*45,
			Latitude:   lat,
			Longitude:  lon,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		return order.ToFields()
	}

	driverProducer := producer.New(client, producer.Config{
		Stream:   cfg.DriverStream,
		Interval: cfg.ProduceInterval,
	}, driverGen, log.WithField("stream", cfg.DriverStream))

	orderProducer := producer.New(client, producer.Config{
		Stream:   cfg.OrderStream,
		Interval: cfg.ProduceInterval,
	}, orderGen, log.WithField("stream", cfg.OrderStream))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := driverProducer.Run(ctx); err != nil {
			log.WithError(err).Warn("driver producer exited with error")
		}
	}()
	go func() {
		defer wg.Done()
		if err := orderProducer.Run(ctx); err != nil {
			log.WithError(err).Warn("order producer exited with error")
		}
	}()

	wg.Wait()
	log.Info("producer stopped")
}

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

// Package metrics exposes the process-level Prometheus counters shared by
// the stream processors. It replaces the rate limiter's churn-ratio KPIs
// (naive writes, write-reduction, commits/batch) with the stream-pipeline
// equivalents: messages consumed, per-message failures, reclaim outcomes,
// and batch fan-out sizes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesConsumed counts successfully processed-and-acked messages, by stream.
	MessagesConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surgepipe_messages_consumed_total",
		Help: "Total stream messages successfully processed and acknowledged",
	}, []string{"stream", "consumer_group"})

	// MessageFailures counts per-message processing failures left un-acked.
	MessageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surgepipe_message_failures_total",
		Help: "Total per-message processing failures (message left pending for reclaim)",
	}, []string{"stream", "consumer_group", "reason"})

	// ReclaimAttempts counts stale-message reclaim outcomes.
	ReclaimAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surgepipe_reclaim_attempts_total",
		Help: "Total stale-message reclaim attempts, by outcome",
	}, []string{"stream", "consumer_group", "outcome"})

	// BatchSize observes the number of messages returned per batched read.
	BatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surgepipe_batch_size",
		Help:    "Distribution of messages per batched stream read",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"stream", "consumer_group"})

	// SurgeComputations counts surge-map computations served by resolution.
	SurgeComputations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surgepipe_surge_computations_total",
		Help: "Total surge-price computations served, by resolution",
	}, []string{"resolution"})

	// FatalStoreErrors counts loop-terminating store-connection failures.
	FatalStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surgepipe_fatal_store_errors_total",
		Help: "Total fatal store-connection errors that terminated a consumer loop",
	}, []string{"component"})
)

func init() {
	prometheus.MustRegister(
		MessagesConsumed,
		MessageFailures,
		ReclaimAttempts,
		BatchSize,
		SurgeComputations,
		FatalStoreErrors,
	)
}

// Serve starts a dedicated HTTP server exposing /metrics on addr. It blocks
// until the server fails, so call it from a goroutine. Mirrors the teacher's churn.Config's
// optional standalone metrics endpoint — here it is always opt-in via a
// non-empty addr, never started implicitly.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

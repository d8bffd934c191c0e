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

// Package processor implements the consumer-group protocol shared by every
// stream reader in the pipeline: group bootstrap, batched reads with
// explicit per-message acknowledgement, and reclaim of messages left
// pending by a crashed consumer. The aggregator and persister handlers both
// sit behind this loop; neither reimplements XREADGROUP/XACK/XCLAIM.
//
// Grounded in the pack's Redis-stream consumers: BUSYGROUP-tolerant group
// creation follows the RohanRaikwar algo-sys reader, and the
// read/ack/structured-log loop follows brokle-ai's telemetry stream
// consumer.
package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/streaming/kv"
	"github.com/etalazz/surgepipe/internal/telemetry/metrics"
)

// Outcome classifies how a processing step resolved, mirroring the explicit
// result-value error taxonomy used throughout the pipeline: failures are
// values the caller inspects, not exceptions that unwind the stack.
type Outcome int

const (
	// OutcomeOK means every message in the batch was handled and acked.
	OutcomeOK Outcome = iota
	// OutcomePerMessageFail means one or more messages failed and were left
	// un-acked for a later reclaim; the loop continues.
	OutcomePerMessageFail
	// OutcomeFatal means the store connection itself failed; the loop must
	// stop and the process should exit non-zero.
	OutcomeFatal
)

// Handler processes the decoded fields of a single stream message. A
// returned error leaves the message un-acked (per-message isolation): it
// does not abort the batch or the run loop.
type Handler interface {
	HandleMessage(ctx context.Context, id string, fields map[string]string) error
}

// Config parameterizes one Processor instance.
type Config struct {
	Stream        string
	Group         string
	Consumer      string
	BlockTimeout  time.Duration
	BatchSize     int64
	MinIdleTime   time.Duration
	ReclaimEvery  time.Duration
	ReclaimBudget int64
	// IdleSleep is how long Run pauses before the next XREADGROUP call when
	// a batch read comes back with no messages at all. Defaults to 100ms.
	IdleSleep time.Duration
}

// Processor drives the ensure-group / consume-once / reclaim-stale cycle
// against a single stream for a single consumer group.
type Processor struct {
	client kv.StreamClient
	cfg    Config
	log    *logrus.Entry
	handle Handler

	lastReclaim time.Time
}

// New builds a Processor bound to client, cfg, and the handler that will
// receive each decoded message.
func New(client kv.StreamClient, cfg Config, log *logrus.Entry, handle Handler) *Processor {
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = 100 * time.Millisecond
	}
	return &Processor{client: client, cfg: cfg, log: log, handle: handle}
}

// EnsureGroup creates the consumer group anchored at the stream's first
// entry ("0"), tolerating a BUSYGROUP error meaning the group already
// exists from a prior run — that is success, not failure.
func (p *Processor) EnsureGroup(ctx context.Context) error {
	err := p.client.XGroupCreateMkStream(ctx, p.cfg.Stream, p.cfg.Group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		p.log.WithField("group", p.cfg.Group).Debug("consumer group already exists")
		return nil
	}
	return err
}

// ConsumeOnce performs one blocking XREADGROUP batch read and dispatches
// each message to the handler, acking individually on success. It returns
// the number of messages successfully processed, the number of messages the
// batch read returned at all (0 means an empty batch — the caller's idle-
// sleep signal), and the Outcome of the batch as a whole.
func (p *Processor) ConsumeOnce(ctx context.Context) (int, int, Outcome, error) {
	res, err := p.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    p.cfg.Group,
		Consumer: p.cfg.Consumer,
		Streams:  []string{p.cfg.Stream, ">"},
		Count:    p.cfg.BatchSize,
		Block:    p.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, OutcomeOK, nil
		}
		metrics.FatalStoreErrors.WithLabelValues("processor").Inc()
		return 0, 0, OutcomeFatal, err
	}

	read := 0
	processed := 0
	outcome := OutcomeOK
	for _, streamRes := range res {
		metrics.BatchSize.WithLabelValues(p.cfg.Stream, p.cfg.Group).Observe(float64(len(streamRes.Messages)))
		read += len(streamRes.Messages)
		for _, msg := range streamRes.Messages {
			fields := stringifyFields(msg.Values)
			if err := p.handle.HandleMessage(ctx, msg.ID, fields); err != nil {
				outcome = OutcomePerMessageFail
				metrics.MessageFailures.WithLabelValues(p.cfg.Stream, p.cfg.Group, "handler_error").Inc()
				p.log.WithError(err).WithFields(logrus.Fields{
					"message_id": msg.ID,
					"stream":     p.cfg.Stream,
				}).Warn("message processing failed, left pending for reclaim")
				continue
			}
			if err := p.client.XAck(ctx, p.cfg.Stream, p.cfg.Group, msg.ID).Err(); err != nil {
				outcome = OutcomePerMessageFail
				metrics.MessageFailures.WithLabelValues(p.cfg.Stream, p.cfg.Group, "ack_error").Inc()
				p.log.WithError(err).WithField("message_id", msg.ID).Warn("ack failed, message will be redelivered")
				continue
			}
			processed++
			metrics.MessagesConsumed.WithLabelValues(p.cfg.Stream, p.cfg.Group).Inc()
		}
	}
	return processed, read, outcome, nil
}

// ReclaimStale finds messages idle longer than MinIdleTime and claims them
// for this consumer, then runs them back through the same handler/ack path
// consume-once uses. Claimed messages are not deduplicated against prior
// (partial) processing — see the aggregator's at-least-once note.
func (p *Processor) ReclaimStale(ctx context.Context) (int, error) {
	pending, err := p.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: p.cfg.Stream,
		Group:  p.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  p.cfg.ReclaimBudget,
	}).Result()
	if err != nil {
		metrics.ReclaimAttempts.WithLabelValues(p.cfg.Stream, p.cfg.Group, "error").Inc()
		return 0, err
	}

	var staleIDs []string
	for _, entry := range pending {
		if entry.Idle >= p.cfg.MinIdleTime {
			staleIDs = append(staleIDs, entry.ID)
		}
	}
	if len(staleIDs) == 0 {
		metrics.ReclaimAttempts.WithLabelValues(p.cfg.Stream, p.cfg.Group, "noop").Inc()
		return 0, nil
	}

	claimed, err := p.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   p.cfg.Stream,
		Group:    p.cfg.Group,
		Consumer: p.cfg.Consumer,
		MinIdle:  p.cfg.MinIdleTime,
		Messages: staleIDs,
	}).Result()
	if err != nil {
		metrics.ReclaimAttempts.WithLabelValues(p.cfg.Stream, p.cfg.Group, "error").Inc()
		return 0, err
	}

	claimedCount := 0
	for _, msg := range claimed {
		fields := stringifyFields(msg.Values)
		if err := p.handle.HandleMessage(ctx, msg.ID, fields); err != nil {
			p.log.WithError(err).WithField("message_id", msg.ID).Warn("reclaimed message failed again")
			continue
		}
		if err := p.client.XAck(ctx, p.cfg.Stream, p.cfg.Group, msg.ID).Err(); err != nil {
			p.log.WithError(err).WithField("message_id", msg.ID).Warn("ack of reclaimed message failed")
			continue
		}
		claimedCount++
	}
	metrics.ReclaimAttempts.WithLabelValues(p.cfg.Stream, p.cfg.Group, "claimed").Add(float64(claimedCount))
	return claimedCount, nil
}

// Run drives EnsureGroup once, then alternates ConsumeOnce with a
// periodic ReclaimStale pass until ctx is canceled. A Fatal outcome from
// ConsumeOnce stops the loop and returns the triggering error. When a batch
// read comes back empty, the loop pauses for IdleSleep before reading
// again, rather than spinning a tight XREADGROUP loop.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.EnsureGroup(ctx); err != nil {
		return err
	}
	p.lastReclaim = time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if time.Since(p.lastReclaim) >= p.cfg.ReclaimEvery {
			if _, err := p.ReclaimStale(ctx); err != nil {
				p.log.WithError(err).Warn("reclaim pass failed, continuing")
			}
			p.lastReclaim = time.Now()
		}

		_, read, outcome, err := p.ConsumeOnce(ctx)
		if outcome == OutcomeFatal {
			return err
		}
		if read == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.cfg.IdleSleep):
			}
		}
	}
}

func stringifyFields(values map[string]interface{}) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = toString(v)
	}
	return out
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return ""
	}
}

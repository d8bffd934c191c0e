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

// Package columnar holds the durable row store the persister writes to: the
// system of record behind the live, window-bounded counters. Unlike the
// counter buckets, rows here are addressed by message id, so a redelivered
// message overwrites rather than double-counts — at-least-once delivery is
// safe to land here without a dedup layer in front of it.
package columnar

import (
	"context"

	"github.com/etalazz/surgepipe/internal/events"
)

// Store is the durable sink the persister writes decoded events to. Every
// insert is keyed by messageID so redelivery of the same message (reclaim)
// is an idempotent overwrite, not a duplicate row. A producer retry that
// appends the event twice creates two message ids, and so two rows.
type Store interface {
	InsertDriverPosition(ctx context.Context, messageID string, pos events.DriverPosition) error
	InsertOrder(ctx context.Context, messageID string, order events.Order) error
	Close() error
}

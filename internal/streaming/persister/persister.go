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

// Package persister implements the processor.Handler that writes decoded
// events to the durable columnar store. Unlike the aggregator, it may be
// idempotent: rows are addressed by message id, so redelivery overwrites
// rather than duplicates.
package persister

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/events"
	"github.com/etalazz/surgepipe/internal/store/columnar"
)

// Kind distinguishes which event schema a Persister decodes.
type Kind int

const (
	// DriverPositions decodes and stores driver-position events.
	DriverPositions Kind = iota
	// Orders decodes and stores order events.
	Orders
)

// Persister writes one event stream's messages to a durable Store.
type Persister struct {
	store columnar.Store
	kind  Kind
	log   *logrus.Entry
}

// New builds a Persister for the given event kind.
func New(store columnar.Store, kind Kind, log *logrus.Entry) *Persister {
	return &Persister{store: store, kind: kind, log: log}
}

// HandleMessage implements processor.Handler.
func (p *Persister) HandleMessage(ctx context.Context, id string, fields map[string]string) error {
	switch p.kind {
	case DriverPositions:
		pos, err := events.ParseDriverPosition(fields)
		if err != nil {
			return fmt.Errorf("persister: decode message %s: %w", id, err)
		}
		if err := p.store.InsertDriverPosition(ctx, id, pos); err != nil {
			return fmt.Errorf("persister: store message %s: %w", id, err)
		}
		return nil
	case Orders:
		order, err := events.ParseOrder(fields)
		if err != nil {
			return fmt.Errorf("persister: decode message %s: %w", id, err)
		}
		if err := p.store.InsertOrder(ctx, id, order); err != nil {
			return fmt.Errorf("persister: store message %s: %w", id, err)
		}
		return nil
	default:
		return fmt.Errorf("persister: unknown event kind %v", p.kind)
	}
}

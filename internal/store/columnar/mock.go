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

package columnar

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/events"
)

// LoggingStore logs every insert instead of writing it anywhere durable. It
// exists for local runs and tests that should not require a live Cassandra
// cluster, mirroring the teacher's mockPersister fallback.
type LoggingStore struct {
	log *logrus.Entry

	driverRows int
	orderRows  int
}

// NewLoggingStore builds a LoggingStore.
func NewLoggingStore(log *logrus.Entry) *LoggingStore {
	return &LoggingStore{log: log}
}

func (s *LoggingStore) InsertDriverPosition(ctx context.Context, messageID string, pos events.DriverPosition) error {
	s.driverRows++
	s.log.WithFields(logrus.Fields{
		"message_id": messageID,
		"driver_id":  pos.DriverID,
		"timestamp":  pos.Timestamp,
	}).Debug("persisted driver position")
	return nil
}

func (s *LoggingStore) InsertOrder(ctx context.Context, messageID string, order events.Order) error {
	s.orderRows++
	s.log.WithFields(logrus.Fields{
		"message_id": messageID,
		"order_id":   order.OrderID,
		"timestamp":  order.Timestamp,
	}).Debug("persisted order")
	return nil
}

func (s *LoggingStore) Close() error { return nil }

// Counts reports rows seen so far, for test assertions.
func (s *LoggingStore) Counts() (driverRows, orderRows int) {
	return s.driverRows, s.orderRows
}

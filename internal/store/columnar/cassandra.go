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
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/etalazz/surgepipe/internal/events"
)

// CassandraStore is the production durable-row sink. Both tables are keyed
// by message_id, so a row insert from a redelivered message is a harmless
// overwrite rather than a duplicate.
type CassandraStore struct {
	session *gocql.Session
}

// CassandraConfig names the cluster to connect to.
type CassandraConfig struct {
	Hosts    string // comma-separated
	Keyspace string
	Timeout  time.Duration
}

// NewCassandraStore dials the cluster and returns a ready CassandraStore.
// It assumes the keyspace and tables already exist (schema management is
// out of scope here, matching the rest of the pipeline's "operate against
// pre-provisioned infrastructure" posture).
func NewCassandraStore(cfg CassandraConfig) (*CassandraStore, error) {
	hosts := strings.Split(cfg.Hosts, ",")
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("columnar: connect to cassandra %s/%s: %w", cfg.Hosts, cfg.Keyspace, err)
	}
	return &CassandraStore{session: session}, nil
}

const insertDriverPositionCQL = `
INSERT INTO driver_positions (message_id, driver_id, latitude, longitude, recorded_at)
VALUES (?, ?, ?, ?, ?)`

const insertOrderCQL = `
INSERT INTO orders (message_id, order_id, customer_id, order_value, latitude, longitude, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (s *CassandraStore) InsertDriverPosition(ctx context.Context, messageID string, pos events.DriverPosition) error {
	q := s.session.Query(insertDriverPositionCQL,
		messageID, pos.DriverID, pos.Latitude, pos.Longitude, pos.Timestamp).WithContext(ctx)
	if err := q.Exec(); err != nil {
		return fmt.Errorf("columnar: insert driver position %s: %w", messageID, err)
	}
	return nil
}

func (s *CassandraStore) InsertOrder(ctx context.Context, messageID string, order events.Order) error {
	q := s.session.Query(insertOrderCQL,
		messageID, order.OrderID, order.CustomerID, order.OrderValue, order.Latitude, order.Longitude, order.Timestamp).WithContext(ctx)
	if err := q.Exec(); err != nil {
		return fmt.Errorf("columnar: insert order %s: %w", messageID, err)
	}
	return nil
}

func (s *CassandraStore) Close() error {
	s.session.Close()
	return nil
}

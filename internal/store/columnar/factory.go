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
	"fmt"

	"github.com/sirupsen/logrus"
)

// BuildOptions parameterizes Build's adapter choices.
type BuildOptions struct {
	CassandraHosts    string
	CassandraKeyspace string
}

// Build selects a durable Store by adapter name:
//   - "mock": in-process logging store (default; no external dependency)
//   - "cassandra": real gocql-backed columnar store
//
// This mirrors the teacher's BuildPersister selector: callers name an
// adapter string at the command line rather than constructing a concrete
// type, so swapping backends never touches call sites.
func Build(adapter string, opts BuildOptions, log *logrus.Entry) (Store, error) {
	switch adapter {
	case "", "mock":
		return NewLoggingStore(log), nil
	case "cassandra":
		return NewCassandraStore(CassandraConfig{
			Hosts:    opts.CassandraHosts,
			Keyspace: opts.CassandraKeyspace,
		})
	default:
		return nil, fmt.Errorf("columnar: unknown store adapter %q", adapter)
	}
}

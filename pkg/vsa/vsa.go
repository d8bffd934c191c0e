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

// Package vsa provides a thread-safe, in-memory striped counter built on the
// Vector-Scalar Accumulator (VSA) pattern: a volatile, lock-free-on-the-hot-
// path vector of increments that periodically commits its net delta to a
// durable store. This is the counter-only slice of the pattern — gated
// budget consumption (TryConsume/TryRefund) is not part of this surface,
// since nothing here meters a finite resource; every caller only ever adds
// occurrences and later commits the accumulated total.
package vsa

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// cache line size varies; we over-pad to 128 bytes to avoid false sharing
const padSize = 128 - 8 // atomic.Int64 is 8 bytes; remainder to reach >=128

type stripe struct {
	val atomic.Int64
	_   [padSize]byte
}

// VSA is a thread-safe, in-memory striped counter. Update is lock-free;
// Commit is serialized against itself so concurrent flush attempts cannot
// double-subtract the same committed amount.
type VSA struct {
	// scalar is the durable base value (persisted elsewhere)
	scalar atomic.Int64

	// committedOffset accumulates amounts already committed to storage.
	// Effective in-memory vector = sum(stripes) - committedOffset.
	committedOffset atomic.Int64

	// per-CPU-like stripes to reduce contention on hot keys
	stripes []stripe
	mask    int // stripes-1 (power-of-two mask)

	// chooser spreads updates across stripes for the Update hot path
	chooser atomic.Uint64

	// commitMu serializes Commit against itself; Update never takes it.
	commitMu sync.Mutex
}

// Options configures VSA construction.
type Options struct {
	// Stripes sets the number of striped counters to reduce contention.
	// 0 uses the default: nextPow2(clamp(GOMAXPROCS, [8,64])).
	Stripes int
}

// NewWithOptions creates and initializes a VSA with explicit options.
func NewWithOptions(initialScalar int64, opts Options) *VSA {
	var s int
	if opts.Stripes > 0 {
		s = nextPow2(max(8, min(64, opts.Stripes)))
	} else {
		p := runtime.GOMAXPROCS(0)
		// Default closer to P than 2×P to reduce currentVector scanning cost.
		s = nextPow2(max(8, min(64, p)))
	}
	v := &VSA{stripes: make([]stripe, s), mask: s - 1}
	v.scalar.Store(initialScalar)
	return v
}

// New creates and initializes a new VSA instance with default options.
// The initialScalar should be the last known value from the persistent data store.
func New(initialScalar int64) *VSA {
	return NewWithOptions(initialScalar, Options{})
}

// Update applies a change to the VSA's volatile vector.
// Hot path: lock-free atomic add on a chosen stripe.
func (v *VSA) Update(value int64) {
	idx := int(v.chooser.Add(1)) & v.mask
	v.stripes[idx].val.Add(value)
}

// Available returns the real-time available resource count: S - |A_net|.
// We compute A_net by summing stripes and subtracting committedOffset.
func (v *VSA) Available() int64 {
	s := v.scalar.Load()
	net := v.currentVector()
	return s - abs(net)
}

// State returns the current scalar and effective vector values.
func (v *VSA) State() (scalar, vector int64) {
	return v.scalar.Load(), v.currentVector()
}

// CheckCommit determines if a commit is required for the given threshold.
// It returns (true, vector) when |vector| ≥ threshold.
func (v *VSA) CheckCommit(threshold int64) (bool, int64) {
	net := v.currentVector()
	if abs(net) >= threshold {
		return true, net
	}
	return false, 0
}

// Commit adjusts the internal state after a successful persistent write.
// Per VSA: S_new = S_old - A_net_committed, and the in-memory vector is
// reduced by the same amount. We do not sweep/reset stripes here to keep
// Update lock-free; instead we track a committedOffset.
func (v *VSA) Commit(committedVector int64) {
	if committedVector == 0 {
		return
	}
	v.commitMu.Lock()
	defer v.commitMu.Unlock()
	// The vector provided may be stale by the time we commit due to a
	// concurrent Update. To preserve the availability invariant A = S - |net|
	// across commits, recompute the current effective net and only commit up
	// to its magnitude, in the net's direction.
	net := v.currentVector()
	if net == 0 {
		return
	}
	mag := abs(committedVector)
	if mag > abs(net) {
		mag = abs(net)
	}
	var delta int64
	if net > 0 {
		delta = mag
	} else {
		delta = -mag
	}
	v.scalar.Add(-abs(delta))
	v.committedOffset.Add(delta)
}

// currentVector computes the effective in-memory vector: sum(stripes) - committedOffset.
func (v *VSA) currentVector() int64 {
	var sum int64
	for i := range v.stripes {
		sum += v.stripes[i].val.Load()
	}
	return sum - v.committedOffset.Load()
}

// ---- helpers ----

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	if intSize() == 64 {
		x |= x >> 32
	}
	return x + 1
}

func intSize() int { return 32 << (^uint(0) >> 63) }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Close is a no-op retained so callers can uniformly release a counter when
// evicting it from a map, without caring whether a given instance ever
// needed teardown.
func (v *VSA) Close() {}

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

// Package geo maps (latitude, longitude) pairs onto H3 hexagonal cell ids.
package geo

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

// DefaultResolutions is the set of H3 resolutions the aggregator fans a
// single event out to. Coarser (7) to finer (9).
var DefaultResolutions = []int{7, 8, 9}

// Indexer is a pure, side-effect-free mapper from geographic coordinates to
// H3 cell ids at one or more resolutions.
type Indexer struct {
	resolutions []int
}

// NewIndexer builds an Indexer for the given resolutions. If resolutions is
// empty, DefaultResolutions is used.
func NewIndexer(resolutions []int) *Indexer {
	if len(resolutions) == 0 {
		resolutions = DefaultResolutions
	}
	cp := make([]int, len(resolutions))
	copy(cp, resolutions)
	return &Indexer{resolutions: cp}
}

// Resolutions returns the configured resolutions in their fan-out order.
// Fan-out order is deterministic so that, within one aggregator batch, the
// per-resolution increments for a single event are always issued in the
// same order.
func (ix *Indexer) Resolutions() []int {
	cp := make([]int, len(ix.resolutions))
	copy(cp, ix.resolutions)
	return cp
}

// CellsForPoint returns the H3 cell id at every configured resolution for
// the given coordinates, keyed by resolution.
//
// An invalid coordinate (NaN, +/-Inf, or out of WGS84 range) is the only
// error surface; malformed input is otherwise the caller's problem
// (parsing happens upstream, at the stream boundary).
func (ix *Indexer) CellsForPoint(lat, lon float64) (map[int]string, error) {
	if err := validateCoord(lat, lon); err != nil {
		return nil, err
	}
	cells := make(map[int]string, len(ix.resolutions))
	latLng := h3.LatLng{Lat: lat, Lng: lon}
	for _, res := range ix.resolutions {
		cell := h3.LatLngToCell(latLng, res)
		cells[res] = cell.String()
	}
	return cells, nil
}

// CellForPoint returns the H3 cell id at a single resolution.
func CellForPoint(lat, lon float64, resolution int) (string, error) {
	if err := validateCoord(lat, lon); err != nil {
		return "", err
	}
	cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, resolution)
	return cell.String(), nil
}

func validateCoord(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("geo: invalid latitude %v", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("geo: invalid longitude %v", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("geo: latitude %v out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("geo: longitude %v out of range [-180,180]", lon)
	}
	return nil
}

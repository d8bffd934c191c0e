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

// Package surge computes the surge-price multiplier per H3 cell from the
// windowed driver and order counts. The ladder and its edge cases are taken
// verbatim from the source's surge_pricing/service.py and are not "fixed"
// even where they look counter-intuitive (see the ratio(0) case below).
package surge

import (
	"context"

	"github.com/etalazz/surgepipe/internal/query"
	"github.com/etalazz/surgepipe/internal/telemetry/metrics"
)

// Cell is one H3 cell's surge result. Price is base_price × Multiplier, the
// decimal quote the read API hands back per §4.7/§4.8.
type Cell struct {
	CellID      string
	DriverCount int64
	OrderCount  int64
	Ratio       float64
	Multiplier  float64
	Price       float64
}

// Calculator derives per-cell surge prices from two windowed counters and a
// configured base price.
type Calculator struct {
	drivers   *query.Window
	orders    *query.Window
	basePrice float64
}

// New builds a Calculator over the driver and order windowed counters.
// basePrice is the pre-surge unit price every multiplier is applied to.
func New(drivers, orders *query.Window, basePrice float64) *Calculator {
	return &Calculator{drivers: drivers, orders: orders, basePrice: basePrice}
}

// Map computes surge results for every cell with at least one order in the
// window, at the given resolution. Cells with drivers but no orders are
// omitted: surge is demand-driven, and a cell nobody is ordering from has no
// price to quote.
func (c *Calculator) Map(ctx context.Context, resolution int) ([]Cell, error) {
	driverCounts, err := c.drivers.Counts(ctx, resolution)
	if err != nil {
		return nil, err
	}
	orderCounts, err := c.orders.Counts(ctx, resolution)
	if err != nil {
		return nil, err
	}

	results := make([]Cell, 0, len(orderCounts))
	for cellID, orderCount := range orderCounts {
		driverCount := driverCounts[cellID] // zero value if absent
		ratio := Ratio(driverCount, orderCount)
		multiplier := Multiplier(ratio, orderCount)
		results = append(results, Cell{
			CellID:      cellID,
			DriverCount: driverCount,
			OrderCount:  orderCount,
			Ratio:       ratio,
			Multiplier:  multiplier,
			Price:       c.basePrice * multiplier,
		})
	}
	metrics.SurgeComputations.WithLabelValues(resolutionLabel(resolution)).Inc()
	return results, nil
}

// Point computes the surge result for a single cell.
func (c *Calculator) Point(ctx context.Context, resolution int, cellID string) (Cell, error) {
	driverCounts, err := c.drivers.Counts(ctx, resolution)
	if err != nil {
		return Cell{}, err
	}
	orderCounts, err := c.orders.Counts(ctx, resolution)
	if err != nil {
		return Cell{}, err
	}
	driverCount := driverCounts[cellID]
	orderCount := orderCounts[cellID]
	ratio := Ratio(driverCount, orderCount)
	multiplier := Multiplier(ratio, orderCount)
	metrics.SurgeComputations.WithLabelValues(resolutionLabel(resolution)).Inc()
	return Cell{
		CellID:      cellID,
		DriverCount: driverCount,
		OrderCount:  orderCount,
		Ratio:       ratio,
		Multiplier:  multiplier,
		Price:       c.basePrice * multiplier,
	}, nil
}

// Ratio is demand over supply: orders per driver. A cell with orders but no
// drivers yields ratio 0, not infinity — there is no supply to be scarce
// relative to, so the ladder below resolves it to the base multiplier.
func Ratio(driverCount, orderCount int64) float64 {
	if driverCount == 0 {
		return 0
	}
	return float64(orderCount) / float64(driverCount)
}

// Multiplier applies the ratio ladder. orderCount == 0 always yields the
// base multiplier regardless of ratio: no demand means no surge, full stop.
func Multiplier(ratio float64, orderCount int64) float64 {
	if orderCount == 0 {
		return 1.0
	}
	switch {
	case ratio < 1:
		return 1.0
	case ratio < 2:
		return 1.2
	case ratio < 3:
		return 1.5
	default:
		return 2.0
	}
}

func resolutionLabel(resolution int) string {
	switch resolution {
	case 7:
		return "7"
	case 8:
		return "8"
	case 9:
		return "9"
	default:
		return "other"
	}
}

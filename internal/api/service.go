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

// Package api exposes the read operations over the windowed counters and
// surge calculator as a plain in-process service. There is no HTTP surface
// here (or anywhere in this module) — callers embed Service directly, the
// way a CLI or a test would, rather than going over the wire.
//
// The constructor/registration shape is adapted from the rate limiter's
// api.Server: a struct holding its dependencies, with named methods per
// operation instead of registered HTTP routes.
package api

import (
	"context"
	"fmt"

	"github.com/etalazz/surgepipe/internal/query"
	"github.com/etalazz/surgepipe/internal/surge"
)

// Service answers driver-count, order-count, and surge-price queries.
type Service struct {
	drivers    *query.Window
	orders     *query.Window
	calculator *surge.Calculator
}

// New builds a Service over the windowed counters and surge calculator.
func New(drivers, orders *query.Window, calculator *surge.Calculator) *Service {
	return &Service{drivers: drivers, orders: orders, calculator: calculator}
}

// DriverCount returns the windowed per-cell driver counts at resolution.
func (s *Service) DriverCount(ctx context.Context, resolution int) (map[string]int64, error) {
	counts, err := s.drivers.Counts(ctx, resolution)
	if err != nil {
		return nil, fmt.Errorf("api: driver count at resolution %d: %w", resolution, err)
	}
	return counts, nil
}

// OrderCount returns the windowed per-cell order counts at resolution.
func (s *Service) OrderCount(ctx context.Context, resolution int) (map[string]int64, error) {
	counts, err := s.orders.Counts(ctx, resolution)
	if err != nil {
		return nil, fmt.Errorf("api: order count at resolution %d: %w", resolution, err)
	}
	return counts, nil
}

// SurgePrice returns the surge map for every demanded cell at resolution.
func (s *Service) SurgePrice(ctx context.Context, resolution int) ([]surge.Cell, error) {
	cells, err := s.calculator.Map(ctx, resolution)
	if err != nil {
		return nil, fmt.Errorf("api: surge price at resolution %d: %w", resolution, err)
	}
	return cells, nil
}

// SurgePriceMap returns the same surge results as SurgePrice, projected down
// to the external read-API response shape: cell id to decimal price.
func (s *Service) SurgePriceMap(ctx context.Context, resolution int) (map[string]float64, error) {
	cells, err := s.SurgePrice(ctx, resolution)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(cells))
	for _, cell := range cells {
		prices[cell.CellID] = cell.Price
	}
	return prices, nil
}

// SurgePriceForCell returns the surge result for a single cell.
func (s *Service) SurgePriceForCell(ctx context.Context, resolution int, cellID string) (surge.Cell, error) {
	cell, err := s.calculator.Point(ctx, resolution, cellID)
	if err != nil {
		return surge.Cell{}, fmt.Errorf("api: surge price for cell %s at resolution %d: %w", cellID, resolution, err)
	}
	return cell, nil
}

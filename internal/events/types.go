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

// Package events defines the two tagged event schemas carried by the
// driver-position and order streams, and the strict parsing that turns a
// flat string-keyed stream message into one of them.
//
// Every stream message is a flat map[string]string (the shape Redis Streams
// entries take). Parsing is strict: a missing or unparseable required field
// is a malformed-event error, never a zero value.
package events

import (
	"fmt"
	"strconv"
)

// DriverPosition is one ping of a driver's location.
type DriverPosition struct {
	DriverID  string
	Latitude  float64
	Longitude float64
	Timestamp string // ISO-8601, UTC; kept as the raw string so TimeKey is exact
}

// Order is a single placed order.
type Order struct {
	OrderID    string
	CustomerID string
	OrderValue float64
	Latitude   float64
	Longitude  float64
	Timestamp  string
}

// TimeKey returns the minute bucket this event belongs to: the first 16
// characters of its timestamp, i.e. "YYYY-MM-DDTHH:MM". This is a literal
// string-prefix derivation, not a parsed-and-reformatted one — it mirrors
// the source's timestamp[:16] behavior (see design notes on time-key
// derivation) and does not validate that the timestamp is well-formed
// ISO-8601 beyond length.
func (d DriverPosition) TimeKey() (string, error) { return timeKey(d.Timestamp) }

// TimeKey returns the minute bucket this event belongs to.
func (o Order) TimeKey() (string, error) { return timeKey(o.Timestamp) }

func timeKey(timestamp string) (string, error) {
	if len(timestamp) < 16 {
		return "", fmt.Errorf("events: timestamp %q too short to derive a minute bucket", timestamp)
	}
	return timestamp[:16], nil
}

// ParseDriverPosition strictly decodes a stream message's field map into a
// DriverPosition. Required keys: driver_id, latitude, longitude, timestamp.
func ParseDriverPosition(fields map[string]string) (DriverPosition, error) {
	var d DriverPosition
	driverID, ok := fields["driver_id"]
	if !ok || driverID == "" {
		return d, fmt.Errorf("events: missing required field driver_id")
	}
	lat, err := requireFloat(fields, "latitude")
	if err != nil {
		return d, err
	}
	lon, err := requireFloat(fields, "longitude")
	if err != nil {
		return d, err
	}
	ts, ok := fields["timestamp"]
	if !ok || ts == "" {
		return d, fmt.Errorf("events: missing required field timestamp")
	}
	d.DriverID = driverID
	d.Latitude = lat
	d.Longitude = lon
	d.Timestamp = ts
	return d, nil
}

// ParseOrder strictly decodes a stream message's field map into an Order.
// Required keys: order_id, customer_id, order_value, latitude, longitude,
// timestamp.
func ParseOrder(fields map[string]string) (Order, error) {
	var o Order
	orderID, ok := fields["order_id"]
	if !ok || orderID == "" {
		return o, fmt.Errorf("events: missing required field order_id")
	}
	customerID, ok := fields["customer_id"]
	if !ok || customerID == "" {
		return o, fmt.Errorf("events: missing required field customer_id")
	}
	value, err := requireFloat(fields, "order_value")
	if err != nil {
		return o, err
	}
	if value < 0 {
		return o, fmt.Errorf("events: order_value must be non-negative, got %v", value)
	}
	lat, err := requireFloat(fields, "latitude")
	if err != nil {
		return o, err
	}
	lon, err := requireFloat(fields, "longitude")
	if err != nil {
		return o, err
	}
	ts, ok := fields["timestamp"]
	if !ok || ts == "" {
		return o, fmt.Errorf("events: missing required field timestamp")
	}
	o.OrderID = orderID
	o.CustomerID = customerID
	o.OrderValue = value
	o.Latitude = lat
	o.Longitude = lon
	o.Timestamp = ts
	return o, nil
}

func requireFloat(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("events: missing required field %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("events: field %s=%q is not a number: %w", key, raw, err)
	}
	return v, nil
}

// ToFields serializes a DriverPosition back into the flat stream-message
// shape, for producers.
func (d DriverPosition) ToFields() map[string]string {
	return map[string]string{
		"driver_id": d.DriverID,
		"latitude":  strconv.FormatFloat(d.Latitude, 'f', 6, 64),
		"longitude": strconv.FormatFloat(d.Longitude, 'f', 6, 64),
		"timestamp": d.Timestamp,
	}
}

// ToFields serializes an Order back into the flat stream-message shape, for
// producers.
func (o Order) ToFields() map[string]string {
	return map[string]string{
		"order_id":    o.OrderID,
		"customer_id": o.CustomerID,
		"order_value": strconv.FormatFloat(o.OrderValue, 'f', 2, 64),
		"latitude":    strconv.FormatFloat(o.Latitude, 'f', 6, 64),
		"longitude":   strconv.FormatFloat(o.Longitude, 'f', 6, 64),
		"timestamp":   o.Timestamp,
	}
}

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

// Package logging constructs the structured logger capability injected into
// the stream consumers, producers, and flush worker; the query and surge
// services take no logger. No component reaches
// for a global logger; each is handed one at construction.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger at the given level ("debug", "info", "warn",
// "error"; unrecognized values fall back to "info"). Output goes to stderr
// in the JSON format, matching how the pack's stream-consumer code
// (telemetry_stream_consumer.go) structures its fields.
func New(level, component string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Component returns a logger Entry pre-populated with the "component"
// field, the pattern used throughout the stream-processor packages.
func Component(log *logrus.Logger, component string) *logrus.Entry {
	return log.WithField("component", component)
}

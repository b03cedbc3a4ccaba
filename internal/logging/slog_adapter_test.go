// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestSlogBridgeWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	slogger := NewSlogLogger(NewTestLogger(&buf))

	slogger.Info("service started", "service", "http-server", "attempt", int64(2))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "service started" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["service"] != "http-server" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v", entry["attempt"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestSlogBridgeGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	slogger := NewSlogLogger(NewTestLogger(&buf)).WithGroup("supervisor")

	slogger.Warn("service failed", "name", "ingest-pipeline")

	line := buf.String()
	if !strings.Contains(line, `"supervisor.name":"ingest-pipeline"`) {
		t.Errorf("grouped key missing: %s", line)
	}
}

func TestSlogBridgeLevelMapping(t *testing.T) {
	var buf bytes.Buffer
	slogger := NewSlogLogger(NewTestLogger(&buf))

	slogger.Error("boom")

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("error level not mapped: %s", buf.String())
	}
}

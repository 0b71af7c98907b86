package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "debug", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Info().Str("transaction_id", "txn-1").Msg("message received")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["message"] != "message received" || entry["transaction_id"] != "txn-1" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatal("log entry carries no timestamp")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("production", "chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewDefaultsLevelToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug().Msg("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be suppressed at info level: %q", buf.String())
	}
	log.Info().Msg("visible")
	if buf.Len() == 0 {
		t.Fatal("info output missing")
	}
}

func TestComponentTagsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "debug", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child := Component(*log, "pipeline")
	child.Info().Msg("ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["component"] != "pipeline" {
		t.Fatalf("component tag missing: %v", entry)
	}
}

package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tab-overlay/server/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "layout.pattern_switched",
		Sequence: 7,
		Time:     time.Unix(1700000000, 0).UTC(),
		Actor:    logging.PlayerRef("steve"),
		Targets:  []logging.EntityRef{{ID: "lobby", Kind: logging.EntityKindLayout}},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLayout,
		Payload:  map[string]string{"from": "", "to": "lobby"},
	}
}

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{UseColor: false})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[layout.pattern_switched]", "seq=7", "actor=player:steve", "severity=warn", "targets=layout:lobby", `"to":"lobby"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkWritesRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if record["severity"] != "warn" || record["type"] != "layout.pattern_switched" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestZapSinkMapsSeverity(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZap(zap.New(core))
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entry.Level)
	}
	if entry.Message != "layout.pattern_switched" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if got := entry.ContextMap()["actor"]; got != "player:steve" {
		t.Fatalf("unexpected actor field %v", got)
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), sampleEvent())
	sink.Publish(context.Background(), logging.Event{Type: "other"})
	if got := len(sink.OfType("other")); got != 1 {
		t.Fatalf("expected 1 event of type other, got %d", got)
	}
	sink.Reset()
	if got := len(sink.Events()); got != 0 {
		t.Fatalf("expected reset sink to be empty, got %d", got)
	}
}

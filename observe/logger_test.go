package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	logger.Info(ctx, "fetch completed",
		Field{Key: "duration_ms", Value: 12.0},
		Field{Key: "status", Value: 200},
	)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["msg"] != "fetch completed" {
		t.Errorf("msg = %v", e["msg"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v", e["level"])
	}
	if e["duration_ms"] != 12.0 {
		t.Errorf("duration_ms = %v", e["duration_ms"])
	}
	if e["ts"] == nil {
		t.Error("missing ts")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped too")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept too")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0]["msg"] != "kept" || entries[1]["msg"] != "kept too" {
		t.Errorf("entries = %v", entries)
	}
}

func TestLogger_WithQueryStampsEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	ql := logger.WithQuery("ventas", "ventas/f1?tienda=R001")
	ql.Info(context.Background(), "cache miss")

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0]["query.endpoint"] != "ventas" {
		t.Errorf("query.endpoint = %v", entries[0]["query.endpoint"])
	}
	if entries[0]["query.identity"] != "ventas/f1?tienda=R001" {
		t.Errorf("query.identity = %v", entries[0]["query.identity"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "session refreshed",
		Field{Key: "token", Value: "super-secret"},
		Field{Key: "user", Value: "ana"},
	)

	entries := decodeEntries(t, &buf)
	if entries[0]["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entries[0]["token"])
	}
	if entries[0]["user"] != "ana" {
		t.Errorf("user = %v", entries[0]["user"])
	}
}

func TestNopLogger_Discards(t *testing.T) {
	// Must not panic and must not write anywhere.
	l := NopLogger()
	l.Info(context.Background(), "ignored", Field{Key: "k", Value: "v"})
	l.WithQuery("ventas", "id").Error(context.Background(), "ignored")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line as JSON: %v\nLine: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "sampler started", F("interval_ms", 1000))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["msg"] != "sampler started" {
		t.Errorf("msg = %v, want 'sampler started'", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want 'info'", entry["level"])
	}
	if entry["interval_ms"] != float64(1000) {
		t.Errorf("interval_ms = %v, want 1000", entry["interval_ms"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	scoped := base.With(F("component", "monitor"))

	scoped.Info(context.Background(), "scoped")
	base.Info(context.Background(), "base")

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "monitor" {
		t.Errorf("component = %v, want 'monitor'", entries[0]["component"])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("With must not mutate the parent logger")
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "probe", F("token", "abc"), F("probe", "db"))

	entry := decodeLines(t, &buf)[0]
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entry["token"])
	}
	if entry["probe"] != "db" {
		t.Errorf("probe = %v, want 'db'", entry["probe"])
	}
}

func TestLogger_EncodesErrorsAndNonFinite(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Error(context.Background(), "degenerate",
		F("error", errors.New("boom")),
		F("delay_ms", math.Inf(1)),
	)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["error"] != "boom" {
		t.Errorf("error = %v, want 'boom'", entries[0]["error"])
	}
	if entries[0]["delay_ms"] != "+Inf" {
		t.Errorf("delay_ms = %v, want '+Inf'", entries[0]["delay_ms"])
	}
}

func TestLogger_IncludesTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.Info(ctx, "in span")
	span.End()

	entry := decodeLines(t, &buf)[0]
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v, want %s", entry["trace_id"], span.SpanContext().TraceID())
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(F("worker", i)).Info(context.Background(), "tick")
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 20 {
		t.Errorf("expected 20 entries, got %d", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"loud":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

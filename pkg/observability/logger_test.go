package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"warn":     slog.LevelWarn,
		"WARNING":  slog.LevelWarn,
		"error":    slog.LevelError,
		"nonsense": slog.LevelInfo,
		"":         slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLoggerEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelInfo, &buf)

	log.With("subject_id", "alice").WithError(errors.New("boom")).Warn("resolution degraded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "resolution degraded" {
		t.Errorf("Unexpected message: %v", entry["msg"])
	}
	if entry["subject_id"] != "alice" || entry["error"] != "boom" {
		t.Errorf("Missing structured fields: %v", entry)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelWarn, &buf)

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info/debug suppressed at warn level: %s", buf.String())
	}
	log.Warn("visible")
	if buf.Len() == 0 {
		t.Error("Expected warn line at warn level")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestIDFrom(ctx); got != "req-123" {
		t.Errorf("Expected req-123, got %q", got)
	}
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Errorf("Expected empty ID from bare context, got %q", got)
	}
}

func TestFromContextAnnotatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelInfo, &buf)
	ctx := WithLogger(WithRequestID(context.Background(), "req-9"), log)

	FromContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not JSON: %v", err)
	}
	if entry["request_id"] != "req-9" {
		t.Errorf("Expected request_id annotation, got %v", entry)
	}
}

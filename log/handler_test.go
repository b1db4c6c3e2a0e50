package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFormatterHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormatter(&buf, slog.LevelDebug, &TextFormatter{}).Module("rpc")

	l.Info("estimate served", "gas", 21000)

	out := buf.String()
	for _, want := range []string{"INFO", "estimate served", "module=rpc", "gas=21000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("output not newline-terminated: %q", out)
	}
}

func TestFormatterHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormatter(&buf, slog.LevelDebug, &JSONFormatter{})

	l.Module("estimator").Warn("probe failed", "limit", 30000000)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["msg"] != "probe failed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "probe failed")
	}
	if entry["module"] != "estimator" {
		t.Errorf("module = %v, want %q", entry["module"], "estimator")
	}
	if v, ok := entry["limit"].(float64); !ok || v != 30000000 {
		t.Errorf("limit = %v, want 30000000", entry["limit"])
	}
}

func TestFormatterHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormatter(&buf, slog.LevelWarn, &TextFormatter{})

	l.Debug("nope")
	l.Info("nope")
	if buf.Len() != 0 {
		t.Fatalf("suppressed levels produced output: %s", buf.String())
	}

	l.Warn("yes")
	if !strings.Contains(buf.String(), "yes") {
		t.Fatalf("warn output missing: %s", buf.String())
	}
}

func TestSlogLevelRoundTrip(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  slog.Level
	}{
		{DEBUG, slog.LevelDebug},
		{INFO, slog.LevelInfo},
		{WARN, slog.LevelWarn},
		{ERROR, slog.LevelError},
		{FATAL, slog.LevelError},
	}
	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%v) = %v, want %v", tt.level, got, tt.want)
		}
		if tt.level != FATAL {
			if got := levelFromSlog(tt.want); got != tt.level {
				t.Errorf("levelFromSlog(%v) = %v, want %v", tt.want, got, tt.level)
			}
		}
	}
}

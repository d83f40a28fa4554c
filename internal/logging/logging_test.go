package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelError,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelError,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseTags(t *testing.T) {
	got := parseTags("env=prod, host = db1 ,broken,=novalue,empty=")
	if len(got) != 2 || got["env"] != "prod" || got["host"] != "db1" {
		t.Errorf("parseTags = %v", got)
	}
}

func TestInitJSONWithTags(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(Options{
		Level:  slog.LevelInfo,
		Format: "json",
		Tags:   map[string]string{"service": "1c-monitor"},
		Writer: &buf,
	})

	slog.Debug("hidden")
	slog.Info("shown", "metric", "sessions")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["service"] != "1c-monitor" || rec["metric"] != "sessions" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestInitFromEnvDebugOverridesLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("LOG_LEVEL", "error")

	logger := InitFromEnv(io.Discard, true, nil)
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug flag should enable DEBUG level")
	}

	logger = InitFromEnv(io.Discard, false, nil)
	if logger.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("LOG_LEVEL=error should suppress WARN")
	}
}

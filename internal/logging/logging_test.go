package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("sweep complete")
	logger.Warn("security: rate limit exceeded", "dimension", "email")

	out := buf.String()
	if strings.Contains(out, "sweep complete") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "dimension=email") || !strings.Contains(out, "service=giftlink") {
		t.Errorf("log output = %q", out)
	}
}

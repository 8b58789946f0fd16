package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func record(level slog.Level, msg string) slog.Record {
	return slog.NewRecord(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), level, msg, 0)
}

func TestPrettyHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "never")
	if err := h.Handle(context.Background(), record(slog.LevelInfo, "scraping page 3")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "[INFO]") || !strings.Contains(line, "scraping page 3") {
		t.Fatalf("line = %q", line)
	}
	if !strings.HasPrefix(line, "2024-05-01 10:00:00") {
		t.Fatalf("timestamp missing: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("color escape present with color=never: %q", line)
	}
}

func TestPrettyHandler_ColorAlways(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "always")
	if err := h.Handle(context.Background(), record(slog.LevelWarn, "rate limited")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[33m[WARN]\x1b[0m") {
		t.Fatalf("warn not colorized: %q", buf.String())
	}
}

func TestPrettyHandler_NoColorEnvWins(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "always")
	_ = h.Handle(context.Background(), record(slog.LevelError, "boom"))
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("NO_COLOR ignored: %q", buf.String())
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, slog.LevelWarn, "never")
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error disabled at warn level")
	}
}

func TestPrettyHandler_Attrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "never").WithAttrs([]slog.Attr{slog.String("page", "7")})
	r := record(slog.LevelInfo, "done")
	r.AddAttrs(slog.Int("records", 20))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "page=7") || !strings.Contains(line, "records=20") {
		t.Fatalf("attrs missing: %q", line)
	}
}

func TestParseSlogLevel(t *testing.T) {
	cases := map[string]slog.Leveler{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseSlogLevel(in); got != want {
			t.Fatalf("parseSlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if got := parseSlogLevel("none"); got.Level() < 100 {
		t.Fatalf("none should silence: %v", got)
	}
}

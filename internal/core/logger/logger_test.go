package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitFansOutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdesk.log")
	var console bytes.Buffer

	if err := Init(Options{Level: slog.LevelInfo, Format: "text", File: path, Output: &console}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() {
		Close()
		defaultLogger = nil
	})

	ctx := ContextWithRunID(context.Background(), "run-123")
	InfoContext(ctx, "slot finished", "slot", 2)
	Debug("hidden")
	Close()

	if !strings.Contains(console.String(), "slot finished") || !strings.Contains(console.String(), "run_id=run-123") {
		t.Errorf("console output missing record: %q", console.String())
	}
	if strings.Contains(console.String(), "hidden") {
		t.Error("debug record written at info level")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"slot finished"`) || !strings.Contains(string(data), `"run_id":"run-123"`) {
		t.Errorf("log file missing JSON record: %q", data)
	}
}

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewDefaultsToInfo(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := newWithWriter(Config{}, &out)
	if err != nil {
		t.Fatalf("newWithWriter: %v", err)
	}
	defer closer.Close()

	if logger.GetLevel() != log.InfoLevel {
		t.Errorf("level: got %v, want info", logger.GetLevel())
	}

	logger.Debug("hidden")
	logger.Info("timer started", "state", "running")
	if strings.Contains(out.String(), "hidden") {
		t.Error("debug message written at info level")
	}
	if !strings.Contains(out.String(), "timer started") || !strings.Contains(out.String(), "state=running") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "sandglass") {
		t.Errorf("missing prefix: %q", out.String())
	}
}

func TestNewParsesLevel(t *testing.T) {
	logger, closer, err := newWithWriter(Config{Level: "debug"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newWithWriter: %v", err)
	}
	defer closer.Close()

	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level: got %v, want debug", logger.GetLevel())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := newWithWriter(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sandglass.log")
	var out bytes.Buffer

	logger, closer, err := newWithWriter(Config{File: path, MaxSizeMB: 1}, &out)
	if err != nil {
		t.Fatalf("newWithWriter: %v", err)
	}
	logger.Warn("movement", "date", "2026-01-05T09:00:00Z")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "movement") {
		t.Errorf("log file missing message: %q", data)
	}
	if !strings.Contains(out.String(), "movement") {
		t.Errorf("stderr missing message: %q", out.String())
	}
}

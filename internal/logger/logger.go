// Package logger builds the daemon logger: levelled output on stderr and,
// optionally, a size-rotated log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration.
type Config struct {
	Level      string
	File       string // empty logs to stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger writing to stderr. The returned Closer releases the
// log file, if any.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg Config, stderr io.Writer) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		l, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
		level = l
	}

	writer := stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logger: create log directory: %w", err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   true,
		}
		writer = io.MultiWriter(stderr, fileWriter)
		closer = fileWriter
	}

	logger := log.NewWithOptions(writer, log.Options{
		ReportCaller:    level == log.DebugLevel,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "sandglass",
	})
	return logger, closer, nil
}

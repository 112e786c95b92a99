package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the process logger.
type Options struct {
	// File is the JSON log destination. Empty logs text to Stderr.
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Setup builds the process logger, installs it as the slog default and
// returns a closer for the underlying file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var (
		handler slog.Handler
		closer  io.Closer = nopCloser{}
	)
	if opts.File == "" {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		handler = slog.NewTextHandler(stderr, handlerOpts)
	} else {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		handler = slog.NewJSONHandler(writer, handlerOpts)
		closer = writer
	}

	logger := slog.New(handler).With(slog.Int("pid", os.Getpid()))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR, in any case, onto slog
// levels. Empty means INFO.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

// NullLogger discards everything.
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joacominatel/lossim/internal/config"
)

const logFileName = "lossim.log"

// setupLogger builds the process logger from preferences. Plain runs log to
// stderr; TUI runs log to ~/.lossim/lossim.log so the screen stays intact.
// On failure it still returns a usable stderr logger.
func setupLogger(prefs config.Preferences) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	var setupErr error

	if prefs.TUI {
		f, err := openLogFile()
		if err != nil {
			setupErr = fmt.Errorf("log file: %w", err)
			w = io.Discard
		} else {
			w = f
			closeFn = func() { _ = f.Close() }
		}
	}

	logger := newLogger(w, prefs.LogFormat, prefs.LogLevel)
	slog.SetDefault(logger)
	return logger, closeFn, setupErr
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile() (*os.File, error) {
	dir, err := config.DirPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

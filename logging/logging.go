// Package logging provides structured logging for parley. The TUI owns
// stdout, so logs go to a file (JSON lines via slog); before Init is
// called, everything is discarded.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	closer io.Closer
)

// Init routes logs to the given file path, creating parent directories as
// needed. Passing an empty path keeps logs discarded.
func Init(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	logger = slog.New(slog.NewJSONHandler(f, nil))
	closer = f
	return nil
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
		closer = nil
	}
	logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Logger returns the current structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warning level.
func Warnf(format string, args ...any) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	Logger().Error(fmt.Sprintf(format, args...))
}

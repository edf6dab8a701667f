// ABOUTME: Structured logging configuration using log/slog
// ABOUTME: CLI commands log to stderr; the console logs to a file because it owns the terminal

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DebugLogName is the console's log file inside the config directory
const DebugLogName = "debug.log"

// New builds a logger writing to w.
// level: debug, info, warn, error (default: info)
// format: text, json (default: text)
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init installs a logger writing to w as the slog default
func Init(w io.Writer, level, format string) *slog.Logger {
	l := New(w, level, format)
	slog.SetDefault(l)
	return l
}

// InitFile installs a default logger appending to configDir/debug.log.
// The returned func closes the file.
func InitFile(configDir, level, format string) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(configDir, DebugLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return Init(f, level, format), f.Close, nil
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
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

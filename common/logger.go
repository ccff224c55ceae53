package common

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// loggerPtr holds the engine-wide logger. It is read on every log call and may be swapped at any time.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(NewConsoleLogger(slog.LevelInfo, "oxy", false))
}

// Logger returns the logger used by every engine package.
//
// Returns:
//   - *slog.Logger: the current engine logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// SetLogger replaces the engine logger. Passing nil installs a logger that discards everything.
//
// Parameters:
//   - l: the logger to install, or nil to silence the engine
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// NewConsoleLogger builds a slog logger backed by a charmbracelet/log handler writing to stderr.
//
// Parameters:
//   - level: the minimum level that is written
//   - prefix: the prefix printed before every message
//   - reportCaller: if true, each line includes the calling file and line
//
// Returns:
//   - *slog.Logger: the configured logger
func NewConsoleLogger(level slog.Level, prefix string, reportCaller bool) *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportCaller:    reportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           log.Level(level),
	})
	return slog.New(handler)
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") into a slog level.
// Unknown names resolve to info.
//
// Parameters:
//   - name: the level name
//
// Returns:
//   - slog.Level: the matching level
func ParseLevel(name string) slog.Level {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return slog.LevelInfo
	}
	return slog.Level(lvl)
}

type nopHandler struct{}

func (nopHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (nopHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h nopHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h nopHandler) WithGroup(_ string) slog.Handler             { return h }

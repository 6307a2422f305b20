// Package logging adapts Go's standard log/slog to cosmossdk.io/log.Logger,
// the interface the rest of this module logs through. It is the teacher's
// bench/util.SlogWrapper unchanged in mechanism, renamed to live alongside
// the other ambient packages instead of under a benchmarking-specific tree.
package logging

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"cosmossdk.io/log"
)

// Wrapper wraps a slog.Logger to implement cosmossdk.io/log.Logger while
// preserving the call site's source location.
type Wrapper struct {
	logger *slog.Logger
}

var _ log.Logger = &Wrapper{}

// New wraps logger.
func New(logger *slog.Logger) *Wrapper {
	return &Wrapper{logger: logger}
}

// NewText returns a Wrapper writing human-readable text to os.Stderr at the
// given level, the default logger partialmap.New installs.
func NewText(level slog.Level) *Wrapper {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return New(slog.New(h))
}

func (w *Wrapper) Debug(msg string, keyvals ...interface{}) {
	if !w.logger.Enabled(nil, slog.LevelDebug) {
		return
	}
	w.logWithSource(slog.LevelDebug, msg, keyvals...)
}

func (w *Wrapper) Info(msg string, keyvals ...interface{}) {
	if !w.logger.Enabled(nil, slog.LevelInfo) {
		return
	}
	w.logWithSource(slog.LevelInfo, msg, keyvals...)
}

func (w *Wrapper) Error(msg string, keyvals ...interface{}) {
	if !w.logger.Enabled(nil, slog.LevelError) {
		return
	}
	w.logWithSource(slog.LevelError, msg, keyvals...)
}

func (w *Wrapper) Warn(msg string, keyvals ...interface{}) {
	if !w.logger.Enabled(nil, slog.LevelWarn) {
		return
	}
	w.logWithSource(slog.LevelWarn, msg, keyvals...)
}

func (w *Wrapper) With(keyvals ...interface{}) log.Logger {
	return &Wrapper{logger: w.logger.With(keyvals...)}
}

func (w *Wrapper) Impl() any {
	return w.logger
}

func (w *Wrapper) logWithSource(level slog.Level, msg string, keyvals ...interface{}) {
	pc, _, _, ok := runtime.Caller(3)
	if !ok {
		w.logger.Log(nil, level, msg, keyvals...)
		return
	}
	record := slog.NewRecord(time.Now(), level, msg, pc)
	record.Add(keyvals...)
	_ = w.logger.Handler().Handle(nil, record)
}

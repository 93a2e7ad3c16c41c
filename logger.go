package vortex

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewSimpleLogger returns a text logger on stderr that emits debug output.
func NewSimpleLogger() Logger {
	return NewTextLogger(os.Stderr, slog.LevelDebug)
}

// NewTextLogger returns a slog text logger writing to w at the given level.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NopLogger discards everything.
func NopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// safely runs fn and turns a returned error or a panic into a warning tagged
// with stage. It reports whether fn completed without failure.
func safely(logger Logger, stage string, fn func() error, args ...any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("callback panicked", append([]any{"stage", stage, "panic", fmt.Sprint(r)}, args...)...)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		logger.Warn("callback failed", append([]any{"stage", stage, "error", err}, args...)...)
		return false
	}
	return true
}

// panicError carries a value recovered from a caller supplied hook.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// recoverError runs fn and converts a panic into a *panicError.
func recoverError(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn()
}

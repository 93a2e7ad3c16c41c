package vortex

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSafely(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelDebug)

	if !safely(logger, "ok", func() error { return nil }) {
		t.Error("Expected success to report true")
	}
	if buf.Len() != 0 {
		t.Errorf("Expected nothing logged on success, got %q", buf.String())
	}

	if safely(logger, "onSuccess", func() error { return errors.New("boom") }, "requestID", "r1") {
		t.Error("Expected an error to report false")
	}
	if out := buf.String(); !strings.Contains(out, "stage=onSuccess") || !strings.Contains(out, "requestID=r1") {
		t.Errorf("Expected stage and context in the log, got %q", out)
	}

	buf.Reset()
	if safely(logger, "onFinally", func() error { panic("kaboom") }) {
		t.Error("Expected a panic to report false")
	}
	if out := buf.String(); !strings.Contains(out, "callback panicked") || !strings.Contains(out, "kaboom") {
		t.Errorf("Expected the panic to be logged, got %q", out)
	}
}

func TestRecoverError(t *testing.T) {
	err := recoverError(func() error { panic("bad hook") })

	var pe *panicError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected a panicError, got %v", err)
	}
	if pe.Error() != "panic: bad hook" {
		t.Errorf("Unexpected message %q", pe.Error())
	}

	want := errors.New("plain")
	if got := recoverError(func() error { return want }); got != want {
		t.Errorf("Expected the returned error to pass through, got %v", got)
	}
}

func TestLoggerConstructors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug output to be filtered at info level")
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("Expected structured output, got %q", out)
	}

	NopLogger().Error("discarded")
	if NewSimpleLogger() == nil {
		t.Error("Expected a simple logger")
	}
}

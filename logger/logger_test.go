package logger_test

import (
	"testing"

	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/testutils"
)

func TestMockLogger(t *testing.T) {
	l := testutils.NewMockLogger()
	l.Info("hello", logger.String("k", "v"))
	if got := l.LastMessage(); got != "hello" {
		t.Fatalf("expected last message 'hello', got %q", got)
	}
	if v, ok := l.FieldString("hello", "k"); !ok || v != "v" {
		t.Fatalf("expected field k=v, got %q (found=%v)", v, ok)
	}
	l.Warn("hello")
	if n := l.Count("warn", "hello"); n != 1 {
		t.Fatalf("expected one warn entry, got %d", n)
	}
	if n := l.Count("", "hello"); n != 2 {
		t.Fatalf("expected two entries in total, got %d", n)
	}
}

func TestNewZapLoggerFallsBackToInfo(t *testing.T) {
	l, err := logger.NewZapLogger("not-a-level")
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}
	l.Debug("dropped")
	l.Info("kept", logger.Int("n", 1), logger.Float64("x", 1.5))
}

func TestNopLogger(t *testing.T) {
	var l logger.Logger = logger.NewNop()
	l.Error("ignored", logger.Err(nil))
}

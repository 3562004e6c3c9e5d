package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesSortedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	Info("envio.sent", map[string]any{"hoja_id": 7, "envio_id": 3})
	Error("envio.failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["hoja_id"] != int64(7) {
		t.Fatalf("expected hoja_id field, got %#v", ctx["hoja_id"])
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("expected error text, got %#v", entries[1].ContextMap()["error"])
	}
}

func TestSetLoggerNilFallsBackToNop(t *testing.T) {
	prev := L()
	defer SetLogger(prev)

	SetLogger(nil)
	Warn("noop", nil)
	if L() == nil {
		t.Fatalf("expected nop logger")
	}
}

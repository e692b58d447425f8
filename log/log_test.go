package log

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCallerField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Warn("ReadBuffer", zap.String("err", "boom"))

	entries := logs.FilterMessage("ReadBuffer").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	caller, ok := entries[0].ContextMap()["caller"].(string)
	if !ok || !strings.Contains(caller, "log_test.go") {
		t.Errorf("caller = %q, want it to point at log_test.go", caller)
	}

	if entries[0].ContextMap()["err"] != "boom" {
		t.Errorf("err field = %v", entries[0].ContextMap()["err"])
	}
}

func TestLevelFilter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Debug("Dropped")
	Info("Dropped")
	Error("Kept")

	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want 1", logs.Len())
	}
}

func TestInitRejectsUnknownEncoding(t *testing.T) {
	if err := Init("pha", OptionWithEncoding("xml")); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

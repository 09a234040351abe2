package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	t.Parallel()

	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "provider" || fields[0].String != "gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
	if len(StringFields()) != 0 {
		t.Fatal("expected no fields")
	}
}

func TestWithFields(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	WithFields(zap.New(core), zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["foo"]; got != "bar" {
		t.Fatalf("expected foo=bar, got %v", got)
	}

	if WithFields(nil) == nil {
		t.Fatal("expected no-op logger for nil input")
	}
}

func TestWithCommonFields(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	WithCommonFields(zap.New(core), "openai", "").Info("embedded")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldProvider] != "openai" {
		t.Fatalf("unexpected provider %v", ctx[FieldProvider])
	}
	if _, ok := ctx[FieldModel]; ok {
		t.Fatal("expected empty model to be omitted")
	}
}

func TestDocumentFields(t *testing.T) {
	t.Parallel()

	fields := DocumentFields("u1", "doc-9")
	if len(fields) != 2 || fields[0].Key != FieldOwner || fields[1].String != "doc-9" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if got := DocumentFields("u1", ""); len(got) != 1 {
		t.Fatalf("expected owner only, got %+v", got)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		json, debug bool
	}{{false, false}, {true, true}} {
		l, err := New(tc.json, tc.debug)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := l.Core().Enabled(zapcore.DebugLevel); got != tc.debug {
			t.Fatalf("debug enabled = %v, want %v", got, tc.debug)
		}
	}
}

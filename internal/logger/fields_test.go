package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProviderFields(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		operation string
		want      map[string]string
	}{
		{
			name:      "both present and trimmed",
			provider:  "  gemini ",
			operation: "gemini-2.5-flash",
			want:      map[string]string{FieldProvider: "gemini", FieldOperation: "gemini-2.5-flash"},
		},
		{
			name:     "operation omitted",
			provider: "google",
			want:     map[string]string{FieldProvider: "google"},
		},
		{
			name: "nothing to describe",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ProviderFields(tt.provider, tt.operation)
			if len(fields) != len(tt.want) {
				t.Fatalf("expected %d fields, got %d", len(tt.want), len(fields))
			}
			for _, f := range fields {
				if tt.want[f.Key] != f.String {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}

func TestWithProvider(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithProvider(zap.New(core), "google", "text-to-speech").Info("synthesized")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "google" || ctx[FieldOperation] != "text-to-speech" {
		t.Fatalf("unexpected context %v", ctx)
	}

	// A nil logger must still be usable.
	WithProvider(nil, "google", "speech-to-text").Info("ignored")
}

func TestWithFieldsWithoutFields(t *testing.T) {
	base := zap.NewNop()
	if got := WithFields(base); got != base {
		t.Fatalf("expected the same logger back")
	}
}

func TestSessionFields(t *testing.T) {
	fields := SessionFields(" 3f2a ", 4)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != FieldSession || fields[0].String != "3f2a" {
		t.Fatalf("unexpected session field: %+v", fields[0])
	}
	if fields[1].Key != FieldStep || fields[1].Integer != 4 {
		t.Fatalf("unexpected step field: %+v", fields[1])
	}

	if got := SessionFields("", 0); len(got) != 0 {
		t.Fatalf("expected no fields, got %d", len(got))
	}

	core, observed := observer.New(zapcore.InfoLevel)
	WithFields(zap.New(core), SessionFields("abc", 2)...).Info("scored")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldSession] != "abc" || ctx[FieldStep] != int64(2) {
		t.Fatalf("unexpected context %v", ctx)
	}
}

package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("writing empty file: %v", err)
	}

	t.Setenv("INTERVIEWER_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		expect  string
		errPart string
	}{
		{
			name:   "file wins over value and env",
			src:    Source{Name: "key", File: keyFile, Value: "inline", Env: "INTERVIEWER_TEST_SECRET"},
			expect: "from-file",
		},
		{
			name:   "value wins over env",
			src:    Source{Name: "key", Value: " inline ", Env: "INTERVIEWER_TEST_SECRET"},
			expect: "inline",
		},
		{
			name:   "env is used last",
			src:    Source{Name: "key", Env: "INTERVIEWER_TEST_SECRET"},
			expect: "from-env",
		},
		{
			name:    "empty file",
			src:     Source{Name: "key", File: emptyFile},
			errPart: "is empty",
		},
		{
			name:    "missing file",
			src:     Source{Name: "key", File: filepath.Join(dir, "missing")},
			errPart: "reading key from file",
		},
		{
			name:    "unset env",
			src:     Source{Name: "key", Env: "INTERVIEWER_TEST_UNSET"},
			errPart: "set INTERVIEWER_TEST_UNSET",
		},
		{
			name:    "nothing configured",
			src:     Source{},
			errPart: "secret is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.errPart != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errPart) {
					t.Fatalf("expected error containing %q, got %v", tt.errPart, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

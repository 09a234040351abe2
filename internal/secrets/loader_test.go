package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil || got != "from-file" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte(" \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(Source{Name: "api key", File: empty}); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
	if _, err := Load(Source{File: filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HIRINGBUDDY_TEST_KEY", " env-secret ")

	got, err := Load(Source{Env: "HIRINGBUDDY_TEST_KEY", Value: "inline"})
	if err != nil || got != "env-secret" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}

	t.Setenv("HIRINGBUDDY_TEST_KEY", "")
	got, err = Load(Source{Env: "HIRINGBUDDY_TEST_KEY", Value: "inline"})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline fallback, got %q, %v", got, err)
	}

	_, err = Load(Source{Name: "api key", Env: "HIRINGBUDDY_TEST_KEY"})
	if err == nil || !strings.Contains(err.Error(), "$HIRINGBUDDY_TEST_KEY") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestLoadNotConfigured(t *testing.T) {
	t.Parallel()

	if _, err := Load(Source{}); err == nil || err.Error() != "secret is not configured" {
		t.Fatalf("unexpected error %v", err)
	}
}

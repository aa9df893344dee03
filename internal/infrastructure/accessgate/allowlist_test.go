package accessgate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMergesFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uploaders.yaml")
	content := "uploaders:\n  - \"100\"\n  - \"200\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write allowlist: %v", err)
	}

	gate, err := Load(path, []string{"300", " ", ""})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gate.Size() != 3 {
		t.Fatalf("expected 3 uploaders, got %d", gate.Size())
	}
	for _, id := range []string{"100", "200", "300"} {
		if !gate.IsAuthorized(context.Background(), id) {
			t.Fatalf("expected %s to be authorized", id)
		}
	}
	if gate.IsAuthorized(context.Background(), "999") {
		t.Fatalf("expected 999 to be denied")
	}
}

func TestLoadMissingFileWithOverrideIsNotFatal(t *testing.T) {
	gate, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), []string{"55"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !gate.IsAuthorized(context.Background(), "55") {
		t.Fatalf("expected override identity to be authorized")
	}
}

func TestEmptyGateDeniesEveryone(t *testing.T) {
	gate := New(nil)
	if gate.IsAuthorized(context.Background(), "1") {
		t.Fatalf("empty allowlist must deny")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uploaders.yaml")
	if err := os.WriteFile(path, []byte("uploaders: {broken"), 0o600); err != nil {
		t.Fatalf("write allowlist: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

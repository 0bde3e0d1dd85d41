package files

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	report := filepath.Join(layout.Reports, "sess1-report.md")
	if err := os.WriteFile(report, []byte("# report"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	path, ok := layout.Resolve("sess1-report.md")
	if !ok || path != report {
		t.Fatalf("expected the report resolved, got %q %v", path, ok)
	}

	if _, ok := layout.Resolve("missing.md"); ok {
		t.Fatalf("expected an unknown name to stay unresolved")
	}
}

func TestResolveStripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	layout := NewLayout(filepath.Join(dir, "uploads"))
	if err := layout.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	secret := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if path, ok := layout.Resolve("../../secret.txt"); ok {
		t.Fatalf("expected traversal rejected, resolved %q", path)
	}
}

package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStorePreservesExtension(t *testing.T) {
	dir := t.TempDir()
	ingest := NewIngest(dir, "", nil)

	path, err := ingest.Store("sess1", "q1", strings.NewReader("audio-bytes"), "recording.WAV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Ext(path) != ".wav" {
		t.Fatalf("expected the lowered original extension, got %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "sess1-q1-") {
		t.Fatalf("expected the session and question ids in the name, got %s", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected file content: %q", data)
	}
}

func TestStoreDefaultExtension(t *testing.T) {
	ingest := NewIngest(t.TempDir(), "", nil)

	path, err := ingest.Store("sess1", "q1", strings.NewReader("x"), "blob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Ext(path) != ".webm" {
		t.Fatalf("expected the default container extension, got %s", path)
	}
}

func TestStoreCollisionResistantNames(t *testing.T) {
	ingest := NewIngest(t.TempDir(), "", nil)

	first, err := ingest.Store("sess1", "q1", strings.NewReader("a"), "a.webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ingest.Store("sess1", "q1", strings.NewReader("b"), "a.webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths for the same session and question")
	}
}

func TestStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audio")
	ingest := NewIngest(dir, "", nil)

	if _, err := ingest.Store("sess1", "q1", strings.NewReader("x"), "a.webm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeMissingTool(t *testing.T) {
	ingest := NewIngest(t.TempDir(), "definitely-not-a-real-decoder", nil)

	pcm, warnings := ingest.Normalize(context.Background(), "/tmp/whatever.webm")
	if pcm != "" {
		t.Fatalf("expected an empty pcm path, got %q", pcm)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not installed") {
		t.Fatalf("expected a missing-tool warning, got %v", warnings)
	}
}

func TestNormalizeDecodeFailure(t *testing.T) {
	// `false` exists everywhere and exits non-zero regardless of arguments.
	ingest := NewIngest(t.TempDir(), "false", nil)

	pcm, warnings := ingest.Normalize(context.Background(), "/tmp/whatever.webm")
	if pcm != "" {
		t.Fatalf("expected an empty pcm path, got %q", pcm)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "conversion failed") {
		t.Fatalf("expected a conversion warning, got %v", warnings)
	}
}

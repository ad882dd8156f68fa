package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.mp4")
	if NonEmpty(missing) {
		t.Fatal("missing file should not count as non-empty")
	}

	empty := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if NonEmpty(empty) {
		t.Fatal("zero-byte file should not count as non-empty")
	}

	full := filepath.Join(dir, "full.mp4")
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !NonEmpty(full) {
		t.Fatal("expected non-empty")
	}

	if NonEmpty(dir) {
		t.Fatal("directory should not count as non-empty file")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")

	if err := WriteFileAtomic(path, []byte(`{"scale":2}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"scale":2}` {
		t.Fatalf("content mismatch: %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestRemoveHelpersTolerateAbsence(t *testing.T) {
	dir := t.TempDir()
	if err := RemoveIfExists(filepath.Join(dir, "nope")); err != nil {
		t.Fatalf("remove missing file: %v", err)
	}
	if err := RemoveTreeIfExists(filepath.Join(dir, "nope")); err != nil {
		t.Fatalf("remove missing tree: %v", err)
	}

	sub := filepath.Join(dir, "frames")
	if err := os.MkdirAll(filepath.Join(sub, "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := RemoveTreeIfExists(sub); err != nil {
		t.Fatalf("remove tree: %v", err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatal("tree should be gone")
	}
}

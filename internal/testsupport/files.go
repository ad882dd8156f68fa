package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with the requested number of filler bytes, making
// parent directories as needed. Sizes <= 0 write a single byte so the result
// still counts as non-empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const blockSize = 32 * 1024
	block := bytes.Repeat([]byte{0x54}, blockSize)
	for remaining := size; remaining > 0; remaining -= blockSize {
		n := int64(blockSize)
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(block[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates dir/name holding size bytes of a repeating counter
// pattern and returns the full path.
func WriteFile(t testing.TB, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Pattern(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Pattern returns size bytes counting 0..250 repeatedly.
func Pattern(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return buf
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteAudioStubs creates placeholder files named names inside dir and returns
// their paths in the same order. The content is an ID3 tag header followed by
// padding; it is enough for directory listing and watching, not for decoding.
func WriteAudioStubs(t testing.TB, dir string, names ...string) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	content := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 512)...)
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}

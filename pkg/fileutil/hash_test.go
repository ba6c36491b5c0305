package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileMatchesKnownSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}

	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if hash != want {
		t.Errorf("got %s, want %s", hash, want)
	}
}

func TestHashFileIdenticalContentMatches(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.txt")
	p2 := filepath.Join(dir, "b.txt")
	os.WriteFile(p1, []byte("same content"), 0o644)
	os.WriteFile(p2, []byte("same content"), 0o644)

	h1, err := HashFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(p2)
	if err != nil {
		t.Fatal(err)
	}

	if h1 != h2 {
		t.Errorf("expected matching hashes for identical content, got %s vs %s", h1, h2)
	}
}

func TestDirSizeSumsRecursively(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 100), 0o644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "b.txt"), make([]byte, 250), 0o644)

	size, err := DirSize(dir)
	if err != nil {
		t.Fatalf("DirSize failed: %v", err)
	}
	if size != 350 {
		t.Errorf("expected 350, got %d", size)
	}
}

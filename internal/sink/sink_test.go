package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMemorySinkWriteAndOverflow(t *testing.T) {
	s := NewMemorySink(5)
	n, err := s.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write(abc) = %d, %v", n, err)
	}
	if s.Full() {
		t.Fatal("sink reported full after partial write")
	}
	if _, err := s.Write([]byte("de")); err != nil {
		t.Fatalf("Write(de) failed: %v", err)
	}
	if !s.Full() {
		t.Fatal("sink should be full")
	}
	if !bytes.Equal(s.Bytes(), []byte("abcde")) {
		t.Fatalf("Bytes() = %q, want %q", s.Bytes(), "abcde")
	}

	s2 := NewMemorySink(2)
	if _, err := s2.Write([]byte("abc")); err == nil {
		t.Fatal("expected overflow error, got nil")
	}
}

func TestFileSinkWritesAndCloses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staged.patch")

	fs, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if _, err := fs.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat staged file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("staged file mode = %o, want 0600", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("staged content = %q, want %q", data, "hello")
	}
}

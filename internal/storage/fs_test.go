package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempContent(t *testing.T) (string, *FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return dir, fs
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListOnlyContentFiles(t *testing.T) {
	dir, s := tempContent(t)
	writeFile(t, dir, "a.html", "a")
	writeFile(t, dir, "nested/b.html", "b")
	writeFile(t, dir, "notes.md", "skip")
	writeFile(t, dir, ".hidden.html", "skip")

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]string{}
	for _, m := range metas {
		got[m.Path] = m.Checksum
	}
	if len(got) != 2 {
		t.Fatalf("listed %v, want a.html and nested/b.html", got)
	}
	if got["nested/b.html"] != Checksum([]byte("b")) {
		t.Errorf("checksum mismatch for nested/b.html")
	}
}

func TestRead(t *testing.T) {
	dir, s := tempContent(t)
	writeFile(t, dir, "post.html", "<p>Hello</p>")
	got, err := s.Read("post.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "<p>Hello</p>" {
		t.Errorf("content = %q", got)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	_, s := tempContent(t)
	if _, err := s.Read("../../etc/passwd"); err == nil {
		t.Error("expected error for path traversal")
	}
	if _, err := s.Read("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestNewFSRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.html")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(f); err == nil {
		t.Error("expected error for non-directory root")
	}
}

func TestChecksumStable(t *testing.T) {
	if Checksum([]byte("x")) != Checksum([]byte("x")) {
		t.Error("checksum not deterministic")
	}
	if Checksum([]byte("x")) == Checksum([]byte("y")) {
		t.Error("checksum collision")
	}
}

package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) (*SafeFS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewSafeFS(dir)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	return fs, fs.Root()
}

func TestResolveRejectsTraversal(t *testing.T) {
	fs, _ := newTestFS(t)
	for _, p := range []string{
		"..",
		"../secret.txt",
		"a/../../secret.txt",
		"a/b/../../../secret.txt",
	} {
		if _, err := fs.Resolve(p); !errors.Is(err, ErrTraversal) {
			t.Fatalf("Resolve(%q): got err=%v want ErrTraversal", p, err)
		}
	}
}

func TestResolveRejectsAbsolute(t *testing.T) {
	fs, root := newTestFS(t)
	abs := filepath.Join(root, "a.txt")
	if _, err := fs.Resolve(abs); !errors.Is(err, ErrTraversal) {
		t.Fatalf("Resolve(abs): got err=%v want ErrTraversal", err)
	}
}

func TestResolveNilFSIsNoProject(t *testing.T) {
	var fs *SafeFS
	if _, err := fs.Resolve("a.txt"); !errors.Is(err, ErrNoProject) {
		t.Fatalf("nil fs resolve: got err=%v want ErrNoProject", err)
	}
	if _, err := fs.SafeReadFile("a.txt"); !errors.Is(err, ErrNoProject) {
		t.Fatalf("nil fs read: got err=%v want ErrNoProject", err)
	}
}

func TestResolveNormalizesInsideRoot(t *testing.T) {
	fs, root := newTestFS(t)
	got, resolveErr := fs.Resolve("a/./b/../c.txt")
	if resolveErr != nil {
		t.Fatalf("Resolve: %v", resolveErr)
	}
	want := filepath.Join(root, "a", "c.txt")
	if got != want {
		t.Fatalf("Resolve: got=%s want=%s", got, want)
	}
}

func TestReadWriteRemoveRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.SafeWriteFile("sub/dir/x.txt", []byte("hi")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := fs.SafeReadFile("sub/dir/x.txt")
	if err != nil {
		t.Fatalf("SafeReadFile: %v", err)
	}
	if string(b) != "hi" {
		t.Fatalf("content: got=%q want=hi", b)
	}
	if err := fs.SafeRemove("sub/dir/x.txt"); err != nil {
		t.Fatalf("SafeRemove: %v", err)
	}
	if _, err := fs.SafeReadFile("sub/dir/x.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read after remove: got err=%v want ErrNotFound", err)
	}
}

func TestRemoveMissingIsNotFound(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.SafeRemove("nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SafeRemove missing: got err=%v want ErrNotFound", err)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	fs, _ := newTestFS(t)
	for i := 0; i < 2; i++ {
		if err := fs.SafeWriteFile("x.txt", []byte("same")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	b, readErr := fs.SafeReadFile("x.txt")
	if readErr != nil {
		t.Fatalf("read: %v", readErr)
	}
	if string(b) != "same" {
		t.Fatalf("content: got=%q want=same", b)
	}
}

func TestOpenImplementsFSInterface(t *testing.T) {
	fs, root := newTestFS(t)
	if e := os.WriteFile(filepath.Join(root, "f.txt"), []byte("z"), 0o644); e != nil {
		t.Fatalf("seed: %v", e)
	}
	f, e := fs.Open("f.txt")
	if e != nil {
		t.Fatalf("Open: %v", e)
	}
	_ = f.Close()
	if _, e := fs.Open("../f.txt"); e == nil {
		t.Fatalf("Open traversal: want error")
	}
}

package filereq

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskweave/internal/safeio"
)

func newSandbox(t *testing.T) *safeio.SafeFS {
	t.Helper()
	fs, err := safeio.NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	return fs
}

func TestDetectNoneOnPlainText(t *testing.T) {
	for _, text := range []string{
		"",
		"no request here",
		`{"files":[]}`,
		`{"command":"Delete","fileName":"x"}`,
	} {
		if _, ok := Detect(text); ok {
			t.Fatalf("Detect(%q): got request, want none", text)
		}
	}
}

func TestDetectEmbeddedInProse(t *testing.T) {
	text := `I need to see two files before continuing.

{"files": ["a.txt", "src/b.go"]}`
	req, ok := Detect(text)
	if !ok {
		t.Fatalf("Detect: want request")
	}
	if len(req.Files) != 2 || req.Files[0] != "a.txt" || req.Files[1] != "src/b.go" {
		t.Fatalf("files: %v", req.Files)
	}
}

func TestDetectFirstMatchWins(t *testing.T) {
	text := `{"files":["first.txt"]} and later {"files":["second.txt"]}`
	req, ok := Detect(text)
	if !ok || len(req.Files) != 1 || req.Files[0] != "first.txt" {
		t.Fatalf("req: %+v ok=%v", req, ok)
	}
}

func TestFulfilMixedBatch(t *testing.T) {
	fs := newSandbox(t)
	if err := fs.SafeWriteFile("a.txt", []byte("alpha")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	req := Request{Files: []string{"a.txt", "../secret.txt", "missing.txt"}}
	out, err := Fulfil(context.Background(), fs, req)
	if err != nil {
		t.Fatalf("Fulfil: %v", err)
	}
	if len(out.Entries) != 3 {
		t.Fatalf("entries: got %d want 3", len(out.Entries))
	}
	if out.Entries[0].Path != "a.txt" || out.Entries[0].Content != "alpha" || out.Entries[0].Err != "" {
		t.Fatalf("entry 0: %+v", out.Entries[0])
	}
	if !strings.Contains(out.Entries[1].Err, "security violation") {
		t.Fatalf("entry 1: %+v", out.Entries[1])
	}
	if !strings.Contains(out.Entries[2].Err, "not found") {
		t.Fatalf("entry 2: %+v", out.Entries[2])
	}
}

func TestFulfilNoProjectFailsBatch(t *testing.T) {
	_, err := Fulfil(context.Background(), nil, Request{Files: []string{"a.txt"}})
	if !errors.Is(err, safeio.ErrNoProject) {
		t.Fatalf("got err=%v want ErrNoProject", err)
	}
}

func TestFulfilDuplicatesCollapse(t *testing.T) {
	fs := newSandbox(t)
	if err := fs.SafeWriteFile("a.txt", []byte("alpha")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := Fulfil(context.Background(), fs, Request{Files: []string{"a.txt", "a.txt"}})
	if err != nil {
		t.Fatalf("Fulfil: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("entries: got %d want 1", len(out.Entries))
	}
}

func TestFormatFencedAndPlain(t *testing.T) {
	out := Outcome{Entries: []Entry{
		{Path: "main.go", Content: "package main\n"},
		{Path: "notes.xyz", Content: "free text"},
		{Path: "bad.txt", Err: "Error: file not found"},
	}}
	s := Format(out)
	if !strings.HasPrefix(s, "## FILE CONTENTS\n") {
		t.Fatalf("heading missing:\n%s", s)
	}
	if !strings.Contains(s, "### main.go\n```go\npackage main\n```\n") {
		t.Fatalf("fenced go block missing:\n%s", s)
	}
	if strings.Contains(s, "```xyz") || !strings.Contains(s, "### notes.xyz\nfree text\n") {
		t.Fatalf("unknown extension must render plain:\n%s", s)
	}
	if !strings.Contains(s, "### bad.txt\nError: file not found\n") {
		t.Fatalf("error entry missing:\n%s", s)
	}
}

func TestRewriteStripsRawRequest(t *testing.T) {
	fs := newSandbox(t)
	if err := fs.SafeWriteFile("x.txt", []byte("hi")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	text := "Let me check the file.\n\n{\"files\":[\"x.txt\"]}"
	req, ok := Detect(text)
	if !ok {
		t.Fatalf("Detect: want request")
	}
	out, err := Fulfil(context.Background(), fs, req)
	if err != nil {
		t.Fatalf("Fulfil: %v", err)
	}
	final := Rewrite(text, req, Format(out))
	if strings.Contains(final, `{"files"`) {
		t.Fatalf("raw request leaked:\n%s", final)
	}
	if !strings.Contains(final, "### x.txt") || !strings.Contains(final, "hi") {
		t.Fatalf("contents missing:\n%s", final)
	}
	if !strings.HasPrefix(final, "Let me check the file.") {
		t.Fatalf("prose lost:\n%s", final)
	}
}

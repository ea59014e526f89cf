// Package filereq lets the agent ask for project file contents and get them
// back inline, formatted for reinjection into its next prompt.
package filereq

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"taskweave/internal/safeio"
	"taskweave/internal/util/jsonutil"
)

// reRequest matches a JSON-shaped {"files":[...]} object anywhere in the
// text. Agents embed the request at the end of free-flowing prose, so the
// pattern must not be anchored.
var reRequest = regexp.MustCompile(`\{\s*"files"\s*:\s*\[[^\]]*\]\s*\}`)

// maxParallelReads bounds the fulfilment errgroup. Parallel reads are an
// optimization only; aggregation always preserves request order.
const maxParallelReads = 8

// Request is an agent-issued list of relative paths, plus the span of the
// raw request inside the original text so Rewrite can strip it.
type Request struct {
	Files []string

	rawStart int
	rawEnd   int
}

// Entry is the outcome for one requested path: either file content or a
// human-readable error message, never both.
type Entry struct {
	Path    string
	Content string
	Err     string
}

// Outcome holds one entry per distinct requested path, in order of first
// appearance. Duplicate paths overwrite the earlier entry's value.
type Outcome struct {
	Entries []Entry
}

// Detect finds the first well-formed file request in the text. A text with
// no request, or with an empty files list, yields none.
func Detect(text string) (Request, bool) {
	loc := reRequest.FindStringIndex(text)
	if loc == nil {
		return Request{}, false
	}
	var parsed struct {
		Files []string `json:"files"`
	}
	if err := jsonutil.UnmarshalFlex([]byte(text[loc[0]:loc[1]]), &parsed); err != nil {
		return Request{}, false
	}
	files := make([]string, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		f = strings.TrimSpace(f)
		if f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return Request{}, false
	}
	return Request{Files: files, rawStart: loc[0], rawEnd: loc[1]}, true
}

// Fulfil reads every requested path through the sandbox. A violating or
// missing path records its error message and fulfilment continues; only a
// missing project root fails the batch as a whole.
func Fulfil(ctx context.Context, fs *safeio.SafeFS, req Request) (Outcome, error) {
	if fs == nil || fs.Root() == "" {
		return Outcome{}, safeio.ErrNoProject
	}

	// Distinct paths, first-appearance order.
	order := make([]string, 0, len(req.Files))
	seen := make(map[string]struct{}, len(req.Files))
	for _, p := range req.Files {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		order = append(order, p)
	}

	entries := make([]Entry, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, p := range order {
		g.Go(func() error {
			if gctx.Err() != nil {
				entries[i] = Entry{Path: p, Err: "Error: read canceled"}
				return nil
			}
			entries[i] = readEntry(fs, p)
			return nil
		})
	}
	_ = g.Wait()
	return Outcome{Entries: entries}, nil
}

func readEntry(fs *safeio.SafeFS, path string) Entry {
	b, err := fs.SafeReadFile(path)
	switch {
	case err == nil:
		return Entry{Path: path, Content: string(b)}
	case errors.Is(err, safeio.ErrTraversal):
		return Entry{Path: path, Err: "Error: security violation - path is outside the project directory"}
	case errors.Is(err, safeio.ErrNotFound):
		return Entry{Path: path, Err: "Error: file not found"}
	default:
		return Entry{Path: path, Err: fmt.Sprintf("Error: %v", err)}
	}
}

// Format renders the outcome as the section reinjected into the agent's
// context: a heading, then per file a sub-heading with a fenced block whose
// language tag comes from a fixed extension allow-list. Unknown extensions
// render as a plain paragraph.
func Format(out Outcome) string {
	var b strings.Builder
	b.WriteString("## FILE CONTENTS\n")
	for _, e := range out.Entries {
		b.WriteString("\n### ")
		b.WriteString(e.Path)
		b.WriteString("\n")
		if e.Err != "" {
			b.WriteString(e.Err)
			b.WriteString("\n")
			continue
		}
		tag, ok := langTag(e.Path)
		if !ok {
			b.WriteString(e.Content)
			if !strings.HasSuffix(e.Content, "\n") {
				b.WriteString("\n")
			}
			continue
		}
		b.WriteString("```")
		b.WriteString(tag)
		b.WriteString("\n")
		b.WriteString(e.Content)
		if !strings.HasSuffix(e.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// Rewrite returns the agent-visible text with the raw request stripped and
// the formatted section appended. The agent's next turn sees contents
// inline, never the request syntax.
func Rewrite(text string, req Request, formatted string) string {
	visible := text
	if req.rawEnd > req.rawStart && req.rawEnd <= len(text) {
		visible = text[:req.rawStart] + text[req.rawEnd:]
	}
	visible = strings.TrimRight(visible, " \t\n")
	if visible == "" {
		return formatted
	}
	return visible + "\n\n" + formatted
}

// langTag maps a file extension to a fence language tag. Extensions outside
// the allow-list render unfenced.
func langTag(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	tag, ok := fenceTags[ext]
	return tag, ok
}

var fenceTags = map[string]string{
	".go":   "go",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".html": "html",
	".css":  "css",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".md":   "markdown",
	".sh":   "bash",
	".sql":  "sql",
	".xml":  "xml",
	".toml": "toml",
}

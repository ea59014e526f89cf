package command

import (
	"log"
	"sort"
	"strings"

	"taskweave/internal/util/jsonutil"
)

// envelope mirrors the agent-facing command JSON.
type envelope struct {
	Command     string  `json:"command"`
	FileName    string  `json:"fileName"`
	Content     *string `json:"content"`
	Description string  `json:"description"`
	OldContent  string  `json:"oldContent"`
	NewContent  *string `json:"newContent"`
}

type candidate struct {
	offset int
	body   string
}

// Parse extracts every well-formed command object embedded in free-form
// agent text, in order of first byte offset. It is pure: no I/O, no side
// effects beyond logging skipped candidates. Candidates come from two
// shapes: fenced blocks labeled as JSON, and bare brace-balanced objects
// outside such fences. Anything that does not parse, or parses without a
// command discriminator, is skipped; agent prose is allowed to contain
// stray braces.
func Parse(text string) []Command {
	cands := collectCandidates(text)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].offset < cands[j].offset })

	out := make([]Command, 0, len(cands))
	for _, c := range cands {
		cmd, ok := decodeCandidate(c.body)
		if !ok {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

func collectCandidates(text string) []candidate {
	var cands []candidate
	offset := 0
	rest := text
	for {
		open := indexFence(rest)
		if open < 0 {
			cands = append(cands, scanBare(rest, offset)...)
			break
		}
		// Bare objects before the fence.
		cands = append(cands, scanBare(rest[:open], offset)...)

		tagEnd := open + 3
		lineEnd := strings.IndexByte(rest[tagEnd:], '\n')
		if lineEnd < 0 {
			// Unterminated fence opener at end of text; nothing inside.
			break
		}
		tag := strings.ToLower(strings.TrimSpace(rest[tagEnd : tagEnd+lineEnd]))
		bodyStart := tagEnd + lineEnd + 1
		closeIdx := strings.Index(rest[bodyStart:], "```")
		if closeIdx < 0 {
			// Unclosed fence: treat the remainder as fence body.
			if isStructuredTag(tag) {
				cands = append(cands, fenceCandidates(rest[bodyStart:], offset+bodyStart)...)
			}
			break
		}
		if isStructuredTag(tag) {
			cands = append(cands, fenceCandidates(rest[bodyStart:bodyStart+closeIdx], offset+bodyStart)...)
		}
		next := bodyStart + closeIdx + 3
		offset += next
		rest = rest[next:]
	}
	return cands
}

// indexFence finds the next ``` that starts a line (or the text).
func indexFence(s string) int {
	idx := strings.Index(s, "```")
	for idx >= 0 {
		if idx == 0 || s[idx-1] == '\n' {
			return idx
		}
		next := strings.Index(s[idx+3:], "```")
		if next < 0 {
			return -1
		}
		idx = idx + 3 + next
	}
	return -1
}

func isStructuredTag(tag string) bool {
	return tag == "json" || tag == "json5" || tag == "jsonc"
}

// fenceCandidates treats the fence body as one candidate; if the body as a
// whole is not a single object, it falls back to scanning for balanced
// objects inside it.
func fenceCandidates(body string, base int) []candidate {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var probe map[string]any
		if jsonutil.UnmarshalFlex([]byte(trimmed), &probe) == nil {
			return []candidate{{offset: base, body: trimmed}}
		}
	}
	return scanBare(body, base)
}

// scanBare walks s for top-level brace-balanced groups, tracking string
// literals and escapes. Imbalanced groups are abandoned, not guessed at.
func scanBare(s string, base int) []candidate {
	var cands []candidate
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closer in prose
			}
			depth--
			if depth == 0 && start >= 0 {
				cands = append(cands, candidate{offset: base + start, body: s[start : i+1]})
				start = -1
			}
		}
	}
	// depth > 0 here means an unterminated group; skip it.
	return cands
}

func decodeCandidate(body string) (Command, bool) {
	var env envelope
	if err := jsonutil.UnmarshalFlex([]byte(body), &env); err != nil {
		log.Printf("command: skip unparsable candidate: %v", err)
		return Command{}, false
	}
	if env.Command == "" {
		// Incidental JSON in prose (including file requests) is not ours.
		return Command{}, false
	}
	kind := Kind(env.Command)
	switch kind {
	case KindCreate, KindModify, KindDelete:
	default:
		log.Printf("command: skip unknown command %q", env.Command)
		return Command{}, false
	}
	return Command{
		Kind:        kind,
		FileName:    strings.TrimSpace(env.FileName),
		Content:     env.Content,
		Description: strings.TrimSpace(env.Description),
		OldContent:  env.OldContent,
		NewContent:  env.NewContent,
	}, true
}

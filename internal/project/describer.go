package project

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"taskweave/internal/llm"
	"taskweave/internal/safeio"
	"taskweave/internal/util/jsonutil"
)

const describePrompt = `Describe the purpose of this file in one or two
sentences, based on its content and the stated intent of the change that
produced it. Respond as JSON: {"description":"..."}`

const describeMaxBytes = 16 * 1024

// FileDescriber asks the model for a short description of a freshly written
// file and keeps the latest description per path in memory.
type FileDescriber struct {
	client llm.Client

	mu   sync.RWMutex
	byID map[string]string // path -> description
}

func NewFileDescriber(client llm.Client) *FileDescriber {
	return &FileDescriber{client: client, byID: make(map[string]string)}
}

// GenerateDescription reads the file through the sandbox and records the
// model's description of it. hint is the change intent that triggered the
// write, when the caller has one.
func (d *FileDescriber) GenerateDescription(ctx context.Context, fs *safeio.SafeFS, path, hint string) error {
	content, err := fs.SafeReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s for description: %w", path, err)
	}
	if len(content) > describeMaxBytes {
		content = content[:describeMaxBytes]
	}

	ctx = llm.WithPhase(ctx, llm.PhaseDescribeFile)
	raw, err := d.client.GenerateJSON(ctx, describePrompt, map[string]string{
		"path":    path,
		"intent":  hint,
		"content": string(content),
	})
	if err != nil {
		return err
	}
	var out struct {
		Description string `json:"description"`
	}
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		return fmt.Errorf("decode description for %s: %w", path, llm.ErrInvalidJSON)
	}
	desc := strings.TrimSpace(out.Description)
	if desc == "" {
		return fmt.Errorf("empty description for %s: %w", path, llm.ErrInvalidJSON)
	}

	d.mu.Lock()
	d.byID[path] = desc
	d.mu.Unlock()
	return nil
}

// Description returns the latest recorded description for a path.
func (d *FileDescriber) Description(path string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.byID[path]
	return desc, ok
}

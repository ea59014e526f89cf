package command

import (
	"context"
	"fmt"
	"log"
	"strings"

	"taskweave/internal/safeio"
)

// Describer regenerates the natural-language description of a file after a
// write. It is a best-effort enrichment: executor callers never wait on it
// and its failure never fails the write that triggered it.
type Describer interface {
	GenerateDescription(ctx context.Context, fs *safeio.SafeFS, path, hint string) error
}

// Executor applies parsed commands against a sandboxed filesystem.
type Executor struct {
	Describer Describer // optional
}

// Execute applies one command and reports its outcome. Sandbox violations,
// missing files, malformed commands and pattern misses all come back as a
// failed Result, never as a panic or a thrown error.
func (e *Executor) Execute(ctx context.Context, fs *safeio.SafeFS, cmd Command) Result {
	if err := cmd.validate(); err != nil {
		return Result{Command: cmd, Err: err}
	}
	switch cmd.Kind {
	case KindCreate:
		return e.executeCreate(ctx, fs, cmd)
	case KindModify:
		return e.executeModify(ctx, fs, cmd)
	case KindDelete:
		return e.executeDelete(fs, cmd)
	}
	// validate() rejects unknown kinds; unreachable.
	return Result{Command: cmd, Err: fmt.Errorf("unknown kind %q: %w", cmd.Kind, ErrMalformed)}
}

// ExecuteAll runs commands sequentially in the given order. A failure never
// prevents execution of subsequent commands: the caller gets one Result per
// command and must treat a failed batch as "some subset applied".
func (e *Executor) ExecuteAll(ctx context.Context, fs *safeio.SafeFS, cmds []Command) []Result {
	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, e.Execute(ctx, fs, cmd))
	}
	return results
}

// ProcessResponse parses an agent response and executes every command found
// in it, in order of appearance.
func (e *Executor) ProcessResponse(ctx context.Context, fs *safeio.SafeFS, text string) []Result {
	return e.ExecuteAll(ctx, fs, Parse(text))
}

func (e *Executor) executeCreate(ctx context.Context, fs *safeio.SafeFS, cmd Command) Result {
	if err := fs.SafeWriteFile(cmd.FileName, []byte(*cmd.Content)); err != nil {
		return Result{Command: cmd, Err: err}
	}
	if cmd.Description != "" {
		e.describeAsync(ctx, fs, cmd.FileName, cmd.Description)
	}
	return Result{Command: cmd, Success: true}
}

func (e *Executor) executeModify(ctx context.Context, fs *safeio.SafeFS, cmd Command) Result {
	raw, err := fs.SafeReadFile(cmd.FileName)
	if err != nil {
		return Result{Command: cmd, Err: err}
	}
	content := string(raw)
	if !strings.Contains(content, cmd.OldContent) {
		return Result{Command: cmd, Err: fmt.Errorf("oldContent not present in %s: %w", cmd.FileName, ErrPatternNotFound)}
	}
	updated := strings.Replace(content, cmd.OldContent, *cmd.NewContent, 1)
	if err := fs.SafeWriteFile(cmd.FileName, []byte(updated)); err != nil {
		return Result{Command: cmd, Err: err}
	}
	e.describeAsync(ctx, fs, cmd.FileName, "")
	return Result{Command: cmd, Success: true}
}

func (e *Executor) executeDelete(fs *safeio.SafeFS, cmd Command) Result {
	if err := fs.SafeRemove(cmd.FileName); err != nil {
		return Result{Command: cmd, Err: err}
	}
	return Result{Command: cmd, Success: true}
}

// describeAsync hands description regeneration to a goroutine. The write
// path never waits on it; failures are observed in the log only.
func (e *Executor) describeAsync(ctx context.Context, fs *safeio.SafeFS, path, hint string) {
	if e == nil || e.Describer == nil {
		return
	}
	d := e.Describer
	go func() {
		if err := d.GenerateDescription(context.WithoutCancel(ctx), fs, path, hint); err != nil {
			log.Printf("command: description generation for %s failed: %v", path, err)
		}
	}()
}

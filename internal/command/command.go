package command

import (
	"errors"
	"fmt"
)

// Kind discriminates the closed set of commands an agent may issue.
type Kind string

const (
	KindCreate Kind = "Create"
	KindModify Kind = "Modify"
	KindDelete Kind = "Delete"
)

var (
	// ErrMalformed marks a command missing a required field.
	ErrMalformed = errors.New("command: malformed command")

	// ErrPatternNotFound marks a Modify whose oldContent is not present in
	// the current file content. The file is left unchanged.
	ErrPatternNotFound = errors.New("command: pattern not found")
)

// Command is one structured instruction extracted from agent text.
// Content and NewContent are pointers so that an explicitly empty string is
// distinguishable from an absent JSON field.
type Command struct {
	Kind        Kind
	FileName    string
	Content     *string // Create
	Description string  // Create, optional
	OldContent  string  // Modify
	NewContent  *string // Modify
}

// Result is the per-command outcome. A failed command never aborts the rest
// of its batch; callers receive one Result per parsed command, in parse
// order.
type Result struct {
	Command Command
	Success bool
	Err     error
}

// ErrorMessage returns the failure text for transport layers, empty on
// success.
func (r Result) ErrorMessage() string {
	if r.Success || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (c Command) validate() error {
	if c.FileName == "" {
		return fmt.Errorf("fileName is required: %w", ErrMalformed)
	}
	switch c.Kind {
	case KindCreate:
		if c.Content == nil {
			return fmt.Errorf("content is required for Create: %w", ErrMalformed)
		}
	case KindModify:
		if c.OldContent == "" {
			return fmt.Errorf("oldContent is required for Modify: %w", ErrMalformed)
		}
		if c.NewContent == nil {
			return fmt.Errorf("newContent is required for Modify: %w", ErrMalformed)
		}
	case KindDelete:
		// fileName alone is enough
	default:
		return fmt.Errorf("unknown command kind %q: %w", c.Kind, ErrMalformed)
	}
	return nil
}

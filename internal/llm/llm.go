package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidJSON is returned when a model responds with no usable JSON.
var ErrInvalidJSON = errors.New("llm: invalid json from model")

// Client is the minimal model surface the orchestrator's collaborators are
// built on. Cross-cutting concerns (retries, logging, hooks) are applied via
// Middleware.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Package task drives the multi-step workflow: clarification Q&A, global
// context and todo generation, then per-item execution with summarization
// keeping the model's working context bounded.
package task

import (
	"context"

	"taskweave/internal/store"
)

// State is the orchestrator phase for one project's task run.
type State string

const (
	StateTaskEntry    State = "task_entry"
	StateClarifying   State = "clarifying"
	StateContextReady State = "context_ready"
	StateExecuting    State = "executing"
	StateCompleted    State = "completed"
)

// Question is one clarification question with an optional answering hint.
// Both are opaque text supplied by a collaborator.
type Question struct {
	Text string `json:"text"`
	Hint string `json:"hint,omitempty"`
}

// TodoItem is one step of the decomposed plan. Index is the stable identity
// used for summaries and completion records; items are never reordered or
// removed once created for a run.
type TodoItem struct {
	Index       int              `json:"index"`
	Description string           `json:"description"`
	Status      store.ItemStatus `json:"status"`
	Summary     string           `json:"summary,omitempty"`
}

// QuestionSource supplies the clarification question list for a task.
type QuestionSource interface {
	Questions(ctx context.Context, taskDescription string) ([]Question, error)
}

// Summarizer turns the collected clarification answers into the global
// context document.
type Summarizer interface {
	SummarizeAnswers(ctx context.Context, taskDescription string, questions []Question, answers []string) (string, error)
}

// TodoGenerator decomposes the global context document into plan steps.
type TodoGenerator interface {
	GenerateTodos(ctx context.Context, contextDoc string) ([]string, error)
}

// TranscriptArchiver receives completed items' full transcripts. Archiving
// is best-effort: the orchestrator logs failures and moves on.
type TranscriptArchiver interface {
	PutTranscript(ctx context.Context, projectID string, index int, transcript string) error
}

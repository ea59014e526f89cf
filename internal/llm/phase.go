package llm

import "context"

type ctxKeyPhase struct{}

// Orchestrator call sites tag their requests with a phase so hooks and the
// fake client can tell them apart.
const (
	PhaseClarifyQuestions = "clarify_questions"
	PhaseSummarizeAnswers = "summarize_answers"
	PhaseGenerateTodos    = "generate_todos"
	PhaseSummarizeItem    = "summarize_item"
	PhaseDescribeFile     = "describe_file"
	PhaseExecuteItem      = "execute_item"
)

// WithPhase tags the context with the orchestration phase of the call.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

package llm

import (
	"context"
	"encoding/json"
)

// FakeClient returns deterministic, minimal JSON payloads per phase for
// offline use and tests.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var obj any
	switch PhaseFrom(ctx) {
	case PhaseClarifyQuestions:
		obj = map[string]any{
			"questions": []map[string]any{
				{"text": "fake question one", "hint": "fake hint"},
				{"text": "fake question two"},
			},
		}
	case PhaseSummarizeAnswers:
		obj = map[string]any{
			"context": "fake global context assembled from the clarification answers",
		}
	case PhaseGenerateTodos:
		obj = map[string]any{
			"todos": []map[string]any{
				{"description": "fake first step"},
				{"description": "fake second step"},
			},
		}
	case PhaseSummarizeItem:
		obj = map[string]any{
			"summary": "fake summary of the completed step",
		}
	case PhaseDescribeFile:
		obj = map[string]any{
			"description": "fake file description",
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

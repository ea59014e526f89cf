package task

import (
	"context"
	"fmt"
	"strings"

	"taskweave/internal/llm"
	"taskweave/internal/util/jsonutil"
)

// Collaborators bundles the model-backed implementations of the
// orchestrator's collaborator interfaces on top of a single llm.Client.
type Collaborators struct {
	client llm.Client
}

func NewCollaborators(client llm.Client) *Collaborators {
	return &Collaborators{client: client}
}

const questionsPrompt = `You are planning a software task inside an existing project.
Given the task description, produce the clarification questions whose answers
you need before planning. Respond as JSON:
{"questions":[{"text":"...","hint":"..."}]}
Return an empty list when the description is already unambiguous.`

func (c *Collaborators) Questions(ctx context.Context, taskDescription string) ([]Question, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseClarifyQuestions)
	raw, err := c.client.GenerateJSON(ctx, questionsPrompt, map[string]string{
		"task": taskDescription,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		return nil, fmt.Errorf("decode questions: %w", llm.ErrInvalidJSON)
	}
	questions := out.Questions[:0]
	for _, q := range out.Questions {
		q.Text = strings.TrimSpace(q.Text)
		q.Hint = strings.TrimSpace(q.Hint)
		if q.Text == "" {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

const summarizePrompt = `Combine the task description and the clarification
question/answer pairs into one self-contained context document. It must carry
everything needed to plan the task without re-reading the conversation.
Respond as JSON: {"context":"..."}`

func (c *Collaborators) SummarizeAnswers(ctx context.Context, taskDescription string, questions []Question, answers []string) (string, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseSummarizeAnswers)
	pairs := make([]map[string]string, 0, len(questions))
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		pairs = append(pairs, map[string]string{"question": q.Text, "answer": answer})
	}
	raw, err := c.client.GenerateJSON(ctx, summarizePrompt, map[string]any{
		"task":    taskDescription,
		"answers": pairs,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Context string `json:"context"`
	}
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		return "", fmt.Errorf("decode context: %w", llm.ErrInvalidJSON)
	}
	doc := strings.TrimSpace(out.Context)
	if doc == "" {
		return "", fmt.Errorf("empty context document: %w", llm.ErrInvalidJSON)
	}
	return doc, nil
}

const todosPrompt = `Decompose the task context into an ordered list of
concrete, independently completable steps. Respond as JSON:
{"todos":[{"description":"..."}]}`

func (c *Collaborators) GenerateTodos(ctx context.Context, contextDoc string) ([]string, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseGenerateTodos)
	raw, err := c.client.GenerateJSON(ctx, todosPrompt, map[string]string{
		"context": contextDoc,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Todos []struct {
			Description string `json:"description"`
		} `json:"todos"`
	}
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		return nil, fmt.Errorf("decode todos: %w", llm.ErrInvalidJSON)
	}
	descriptions := make([]string, 0, len(out.Todos))
	for _, t := range out.Todos {
		d := strings.TrimSpace(t.Description)
		if d == "" {
			continue
		}
		descriptions = append(descriptions, d)
	}
	return descriptions, nil
}

const itemSummaryPrompt = `Summarize the finished step's conversation into a
short record of what was done and decided, usable as the only memory of this
step. Respond as JSON: {"summary":"..."}`

// SummarizeItem condenses a finished item's transcript. The orchestrator
// accepts a caller-supplied summary too; this is the model-backed default.
func (c *Collaborators) SummarizeItem(ctx context.Context, description, transcript string) (string, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseSummarizeItem)
	raw, err := c.client.GenerateJSON(ctx, itemSummaryPrompt, map[string]string{
		"step":       description,
		"transcript": transcript,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		return "", fmt.Errorf("decode summary: %w", llm.ErrInvalidJSON)
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary: %w", llm.ErrInvalidJSON)
	}
	return summary, nil
}

package task

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles the bounded context for the active item: the global
// context document, the stored summaries of every earlier item, and the
// active item's own transcript. Raw transcripts of finished items are never
// included; their summaries stand in for them.
func (o *Orchestrator) BuildPrompt(projectID string) (string, error) {
	o.mu.Lock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateExecuting || r.active < 0 || r.active >= len(r.items) {
		state := r.state
		o.mu.Unlock()
		return "", fmt.Errorf("build prompt in state %s: %w", state, ErrBadState)
	}
	doc := r.globalContext
	items := append([]TodoItem(nil), r.items...)
	activeIdx := r.items[r.active].Index
	activeDesc := r.items[r.active].Description
	transcript := append([]string(nil), r.transcript...)
	o.mu.Unlock()

	summaries := map[int]string{}
	if o.store != nil {
		stored, err := o.store.GetSummaries(projectID)
		if err != nil {
			return "", fmt.Errorf("load summaries: %w", err)
		}
		summaries = stored
	}

	var b strings.Builder
	b.WriteString("## TASK CONTEXT\n")
	b.WriteString(strings.TrimSpace(doc))
	b.WriteString("\n")

	wrote := false
	for _, item := range items {
		if item.Index >= activeIdx {
			break
		}
		s, ok := summaries[item.Index]
		if !ok {
			s = item.Summary
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		if !wrote {
			b.WriteString("\n## COMPLETED STEPS\n")
			wrote = true
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", item.Index+1, item.Description, strings.TrimSpace(s))
	}

	fmt.Fprintf(&b, "\n## CURRENT STEP\n%s\n", activeDesc)
	if len(transcript) > 0 {
		b.WriteString("\n## CONVERSATION\n")
		b.WriteString(strings.Join(transcript, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

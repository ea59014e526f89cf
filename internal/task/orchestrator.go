package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"taskweave/internal/store"
)

var (
	// ErrNoTask is returned when an action targets a project with no task
	// run in the expected state.
	ErrNoTask = errors.New("task: no active task")

	// ErrBadState is returned when an action is not valid in the run's
	// current state.
	ErrBadState = errors.New("task: action not valid in current state")

	// ErrEmptySummary is returned when an item completion carries no
	// summary. Summaries are the only memory replayed for finished steps,
	// so an empty one is never accepted.
	ErrEmptySummary = errors.New("task: completion summary is required")

	// ErrCollaborator marks failures of the external summarize/todo
	// collaborators. The triggering action can be retried: collected
	// answers and any stored context survive the failure.
	ErrCollaborator = errors.New("task: collaborator failure")
)

// Orchestrator owns session-scoped task state per project and delegates
// durable artifacts to the store. All mutations for one project are
// serialized by the orchestrator's lock; slow collaborator calls run
// outside it.
type Orchestrator struct {
	store      *store.Store
	questions  QuestionSource
	summarizer Summarizer
	todoGen    TodoGenerator
	archiver   TranscriptArchiver // optional

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	state           State
	taskDescription string
	session         *ClarificationSession
	globalContext   string
	items           []TodoItem
	active          int // index into items, -1 when none
	transcript      []string
	changed         chan struct{}
}

// Snapshot is the externally visible view of a run, safe to serialize.
type Snapshot struct {
	ProjectID       string     `json:"projectId"`
	State           State      `json:"state"`
	TaskDescription string     `json:"taskDescription,omitempty"`
	Question        *Question  `json:"question,omitempty"`
	QuestionIndex   int        `json:"questionIndex"`
	QuestionCount   int        `json:"questionCount"`
	GlobalContext   string     `json:"globalContext,omitempty"`
	Items           []TodoItem `json:"items,omitempty"`
	ActiveIndex     int        `json:"activeIndex"`
}

func NewOrchestrator(st *store.Store, qs QuestionSource, sum Summarizer, gen TodoGenerator, arch TranscriptArchiver) *Orchestrator {
	return &Orchestrator{
		store:      st,
		questions:  qs,
		summarizer: sum,
		todoGen:    gen,
		archiver:   arch,
		runs:       make(map[string]*run),
	}
}

func (o *Orchestrator) getOrCreateLocked(projectID string) *run {
	r, ok := o.runs[projectID]
	if ok {
		return r
	}
	r = o.loadRun(projectID)
	o.runs[projectID] = r
	return r
}

// loadRun rebuilds a run from durable artifacts so a task survives process
// restarts: stored todos resume execution, a stored context alone resumes
// at ContextReady.
func (o *Orchestrator) loadRun(projectID string) *run {
	r := &run{state: StateTaskEntry, active: -1, changed: make(chan struct{})}
	if o.store == nil {
		return r
	}
	doc, ok, err := o.store.GetContext(projectID)
	if err != nil || !ok {
		return r
	}
	r.globalContext = doc
	r.state = StateContextReady

	recs, err := o.store.GetTodos(projectID)
	if err != nil || len(recs) == 0 {
		return r
	}
	summaries, err := o.store.GetSummaries(projectID)
	if err != nil {
		summaries = nil
	}
	r.items = make([]TodoItem, len(recs))
	allDone := true
	for i, rec := range recs {
		item := TodoItem{Index: rec.Index, Description: rec.Description, Status: rec.Status}
		if s, ok := summaries[rec.Index]; ok {
			item.Summary = s
		}
		if rec.Status != store.StatusCompleted {
			allDone = false
		}
		if rec.Status == store.StatusActive {
			r.active = i
		}
		r.items[i] = item
	}
	switch {
	case allDone:
		r.state = StateCompleted
	default:
		r.state = StateExecuting
		if r.active < 0 {
			// No active marker persisted; resume at the first open item.
			for i := range r.items {
				if r.items[i].Status != store.StatusCompleted {
					r.items[i].Status = store.StatusActive
					r.active = i
					break
				}
			}
		}
	}
	return r
}

func notifyLocked(r *run) {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *run) snapshot(projectID string) Snapshot {
	snap := Snapshot{
		ProjectID:       projectID,
		State:           r.state,
		TaskDescription: r.taskDescription,
		ActiveIndex:     r.active,
		QuestionIndex:   -1,
	}
	if r.session != nil {
		snap.QuestionIndex = r.session.CurrentIndex
		snap.QuestionCount = len(r.session.Questions)
		if q, ok := r.session.current(); ok {
			qq := q
			snap.Question = &qq
		}
	}
	snap.GlobalContext = r.globalContext
	snap.Items = append([]TodoItem(nil), r.items...)
	return snap
}

// Snapshot returns the current view of a project's run.
func (o *Orchestrator) Snapshot(projectID string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.getOrCreateLocked(projectID)
	return r.snapshot(projectID)
}

// StartTask enters clarification for a fresh task description. The question
// list comes from the QuestionSource collaborator; a failure there leaves
// the run untouched in TaskEntry.
func (o *Orchestrator) StartTask(ctx context.Context, projectID, description string) (Snapshot, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Snapshot{}, fmt.Errorf("task description is required")
	}

	o.mu.Lock()
	r := o.getOrCreateLocked(projectID)
	switch r.state {
	case StateTaskEntry, StateCompleted:
		// A completed run may be replaced by a new task.
	default:
		snap := r.snapshot(projectID)
		state := r.state
		o.mu.Unlock()
		return snap, fmt.Errorf("start task in state %s: %w", state, ErrBadState)
	}
	o.mu.Unlock()

	questions, err := o.questions.Questions(ctx, description)
	if err != nil {
		return o.Snapshot(projectID), fmt.Errorf("fetch questions: %w: %w", ErrCollaborator, err)
	}

	o.mu.Lock()
	r = o.getOrCreateLocked(projectID)
	// Re-check after the collaborator call: a concurrent StartTask may
	// have moved the run out of a startable state while the lock was
	// released.
	switch r.state {
	case StateTaskEntry, StateCompleted:
	default:
		snap := r.snapshot(projectID)
		state := r.state
		o.mu.Unlock()
		return snap, fmt.Errorf("start task in state %s: %w", state, ErrBadState)
	}
	r.taskDescription = description
	r.session = newClarificationSession(projectID, description, questions)
	r.state = StateClarifying
	r.items = nil
	r.active = -1
	r.transcript = nil
	r.globalContext = ""
	notifyLocked(r)
	snap := r.snapshot(projectID)
	o.mu.Unlock()

	if len(questions) == 0 {
		// Nothing to clarify; go straight to context generation.
		return o.finishClarification(ctx, projectID)
	}
	return snap, nil
}

// AnswerNext persists the answer at the cursor and advances. On the last
// question it transitions out of clarification instead of advancing past
// the end.
func (o *Orchestrator) AnswerNext(ctx context.Context, projectID, answer string) (Snapshot, error) {
	o.mu.Lock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateClarifying || r.session == nil {
		state := r.state
		o.mu.Unlock()
		return o.Snapshot(projectID), fmt.Errorf("answer in state %s: %w", state, ErrBadState)
	}
	done := r.session.next(answer)
	notifyLocked(r)
	o.mu.Unlock()

	if done {
		return o.finishClarification(ctx, projectID)
	}
	return o.Snapshot(projectID), nil
}

// AnswerPrevious persists the current answer and moves the cursor back,
// flooring at the first question.
func (o *Orchestrator) AnswerPrevious(projectID, answer string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateClarifying || r.session == nil {
		return r.snapshot(projectID), fmt.Errorf("navigate in state %s: %w", r.state, ErrBadState)
	}
	r.session.previous(answer)
	notifyLocked(r)
	return r.snapshot(projectID), nil
}

// finishClarification submits the Q&A triple to the summarizer, stores the
// resulting global context, then generates the todo list. Failures preserve
// enough state to retry: a summarizer failure keeps the session and its
// answers, a todo failure keeps the stored context.
func (o *Orchestrator) finishClarification(ctx context.Context, projectID string) (Snapshot, error) {
	o.mu.Lock()
	r := o.getOrCreateLocked(projectID)
	if r.session == nil {
		o.mu.Unlock()
		return o.Snapshot(projectID), fmt.Errorf("no clarification session: %w", ErrNoTask)
	}
	desc := r.session.TaskDescription
	questions := append([]Question(nil), r.session.Questions...)
	answers := append([]string(nil), r.session.Answers...)
	o.mu.Unlock()

	doc, err := o.summarizer.SummarizeAnswers(ctx, desc, questions, answers)
	if err != nil {
		// State stays Clarifying; collected answers are intact for retry.
		return o.Snapshot(projectID), fmt.Errorf("summarize answers: %w: %w", ErrCollaborator, err)
	}

	o.mu.Lock()
	r = o.getOrCreateLocked(projectID)
	// The run may have been restarted while the summarizer was out; a
	// stale document must not overwrite the new run's context.
	if r.state != StateClarifying || r.session == nil {
		snap := r.snapshot(projectID)
		state := r.state
		o.mu.Unlock()
		return snap, fmt.Errorf("finish clarification in state %s: %w", state, ErrBadState)
	}
	if o.store != nil {
		if err := o.store.PutContext(projectID, doc); err != nil {
			snap := r.snapshot(projectID)
			o.mu.Unlock()
			return snap, fmt.Errorf("persist context: %w", err)
		}
	}
	r.globalContext = doc
	r.state = StateContextReady
	notifyLocked(r)
	o.mu.Unlock()

	return o.GenerateTodos(ctx, projectID)
}

// GenerateTodos turns the stored global context into the active plan. It is
// also the retry entry point when the first attempt failed: the context
// document survives todo-generation failures.
func (o *Orchestrator) GenerateTodos(ctx context.Context, projectID string) (Snapshot, error) {
	o.mu.Lock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateContextReady {
		state := r.state
		o.mu.Unlock()
		return o.Snapshot(projectID), fmt.Errorf("generate todos in state %s: %w", state, ErrBadState)
	}
	doc := r.globalContext
	o.mu.Unlock()

	descriptions, err := o.todoGen.GenerateTodos(ctx, doc)
	if err != nil {
		return o.Snapshot(projectID), fmt.Errorf("generate todos: %w: %w", ErrCollaborator, err)
	}
	if len(descriptions) == 0 {
		return o.Snapshot(projectID), fmt.Errorf("generate todos: empty plan: %w", ErrCollaborator)
	}

	items := make([]TodoItem, len(descriptions))
	recs := make([]store.TodoRecord, len(descriptions))
	for i, d := range descriptions {
		status := store.StatusPending
		if i == 0 {
			status = store.StatusActive
		}
		items[i] = TodoItem{Index: i, Description: strings.TrimSpace(d), Status: status}
		recs[i] = store.TodoRecord{Index: i, Description: items[i].Description, Status: status}
	}

	o.mu.Lock()
	r = o.getOrCreateLocked(projectID)
	// Re-check after the collaborator call: a concurrent caller may have
	// generated the plan (or restarted the run) while the lock was
	// released. The persisted plan and the in-memory one must match, so
	// the store write happens under the same lock section.
	if r.state != StateContextReady {
		snap := r.snapshot(projectID)
		state := r.state
		o.mu.Unlock()
		return snap, fmt.Errorf("generate todos in state %s: %w", state, ErrBadState)
	}
	if o.store != nil {
		if err := o.store.PutTodos(projectID, recs); err != nil {
			snap := r.snapshot(projectID)
			o.mu.Unlock()
			return snap, fmt.Errorf("persist todos: %w", err)
		}
	}
	r.items = items
	r.active = 0
	r.transcript = nil
	r.session = nil // clarification is over
	r.state = StateExecuting
	notifyLocked(r)
	snap := r.snapshot(projectID)
	o.mu.Unlock()
	return snap, nil
}

// AppendTranscript records one turn of the active item's conversation.
func (o *Orchestrator) AppendTranscript(projectID, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateExecuting || r.active < 0 {
		return fmt.Errorf("append transcript in state %s: %w", r.state, ErrBadState)
	}
	r.transcript = append(r.transcript, entry)
	return nil
}

// CompleteActiveItem closes the active item with its summary, persists the
// summary keyed by item index, archives the full transcript best-effort,
// and advances to the next pending item or to Completed.
func (o *Orchestrator) CompleteActiveItem(ctx context.Context, projectID, summary string) (Snapshot, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return o.Snapshot(projectID), ErrEmptySummary
	}

	// No collaborator call here, so the whole operation holds the lock:
	// the summary write and the cursor advance are atomic per project.
	// Two concurrent completes therefore land on consecutive items, each
	// with its own persisted summary.
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.getOrCreateLocked(projectID)
	if r.state != StateExecuting || r.active < 0 || r.active >= len(r.items) {
		return r.snapshot(projectID), fmt.Errorf("complete item in state %s: %w", r.state, ErrBadState)
	}
	idx := r.items[r.active].Index
	transcript := strings.Join(r.transcript, "\n")

	if o.store != nil {
		if err := o.store.PutSummary(projectID, idx, summary); err != nil {
			return r.snapshot(projectID), fmt.Errorf("persist summary: %w", err)
		}
	}
	o.archiveAsync(ctx, projectID, idx, transcript)

	r.items[r.active].Status = store.StatusCompleted
	r.items[r.active].Summary = summary
	r.transcript = nil
	r.active = -1
	for i := range r.items {
		if r.items[i].Status == store.StatusPending {
			r.items[i].Status = store.StatusActive
			r.active = i
			break
		}
	}
	if r.active < 0 {
		r.state = StateCompleted
	}
	if o.store != nil {
		recs := make([]store.TodoRecord, len(r.items))
		for i, item := range r.items {
			recs[i] = store.TodoRecord{Index: item.Index, Description: item.Description, Status: item.Status}
		}
		if err := o.store.PutTodos(projectID, recs); err != nil {
			log.Printf("task: persist todo statuses for %s: %v", projectID, err)
		}
	}
	notifyLocked(r)
	return r.snapshot(projectID), nil
}

// ReopenItem gives read access to an already-completed item. It does not
// invalidate or re-link summaries of later items that may have depended on
// it; that reconciliation is a known gap, deliberately left open.
func (o *Orchestrator) ReopenItem(projectID string, index int) (TodoItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.getOrCreateLocked(projectID)
	for _, item := range r.items {
		if item.Index == index {
			return item, nil
		}
	}
	return TodoItem{}, fmt.Errorf("item %d: %w", index, ErrNoTask)
}

func (o *Orchestrator) archiveAsync(ctx context.Context, projectID string, index int, transcript string) {
	if o.archiver == nil || transcript == "" {
		return
	}
	arch := o.archiver
	go func() {
		if err := arch.PutTranscript(context.WithoutCancel(ctx), projectID, index, transcript); err != nil {
			log.Printf("task: archive transcript %s/%d failed: %v", projectID, index, err)
		}
	}()
}

// Subscribe emits a snapshot on every state change for a project until ctx
// is canceled.
func (o *Orchestrator) Subscribe(ctx context.Context, projectID string) <-chan Snapshot {
	out := make(chan Snapshot, 8)
	go func() {
		defer close(out)
		for {
			o.mu.Lock()
			r := o.getOrCreateLocked(projectID)
			snap := r.snapshot(projectID)
			ch := r.changed
			o.mu.Unlock()

			select {
			case out <- snap:
			default:
				// Slow consumer keeps only the latest state.
			}
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out
}

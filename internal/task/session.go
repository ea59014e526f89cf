package task

import "strings"

// ClarificationSession holds the Q&A cursor for one task. It lives only for
// the clarification phase and is dropped once the todo list exists.
type ClarificationSession struct {
	ProjectID       string     `json:"projectId"`
	TaskDescription string     `json:"taskDescription"`
	Questions       []Question `json:"questions"`
	Answers         []string   `json:"answers"`
	CurrentIndex    int        `json:"currentIndex"`
}

func newClarificationSession(projectID, taskDescription string, questions []Question) *ClarificationSession {
	return &ClarificationSession{
		ProjectID:       projectID,
		TaskDescription: taskDescription,
		Questions:       questions,
		Answers:         make([]string, len(questions)),
	}
}

// record stores the (trimmed, possibly empty) answer at the cursor.
func (s *ClarificationSession) record(answer string) {
	if s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Answers) {
		s.Answers[s.CurrentIndex] = strings.TrimSpace(answer)
	}
}

// next persists the answer and advances. It reports whether the cursor was
// already on the last question, in which case it does not advance past the
// end and the caller transitions out of clarification instead.
func (s *ClarificationSession) next(answer string) (done bool) {
	s.record(answer)
	if s.CurrentIndex >= len(s.Questions)-1 {
		return true
	}
	s.CurrentIndex++
	return false
}

// previous persists the current answer and moves back, flooring at 0.
func (s *ClarificationSession) previous(answer string) {
	s.record(answer)
	if s.CurrentIndex > 0 {
		s.CurrentIndex--
	}
}

// current returns the question under the cursor.
func (s *ClarificationSession) current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

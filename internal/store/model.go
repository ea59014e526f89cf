package store

import "strings"

// ItemStatus is the lifecycle of one todo item.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusActive    ItemStatus = "active"
	StatusCompleted ItemStatus = "completed"
)

// TodoRecord is the persisted form of one plan step. Index is the stable
// identity: records are never reordered or removed once written for a task
// run.
type TodoRecord struct {
	Index       int        `json:"index"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
}

// projectRecord is the file backend's on-disk unit, one per project.
type projectRecord struct {
	ProjectID     string         `json:"project_id"`
	GlobalContext string         `json:"global_context,omitempty"`
	Todos         []TodoRecord   `json:"todos,omitempty"`
	Summaries     map[int]string `json:"summaries,omitempty"`
}

func normalizeStatus(s ItemStatus) ItemStatus {
	switch s {
	case StatusPending, StatusActive, StatusCompleted:
		return s
	default:
		return StatusPending
	}
}

func normalizeProjectID(id string) string {
	return strings.TrimSpace(id)
}

// Package store persists the orchestrator's durable task artifacts per
// project: the global-context document, the todo list, and the
// completed-item summaries that survive across sessions.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const summaryCacheSize = 1024

// Store keeps task artifacts either in a single JSON file or in postgres.
// The postgres backend is selected when a DSN is configured; the file
// backend is the fallback and the default for tests.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]projectRecord

	schemaOnce sync.Once
	schemaErr  error

	summaryCache *lru.Cache[string, map[int]string]
}

// New returns a file-backed store persisting to path.
func New(path string) *Store {
	cache, _ := lru.New[string, map[int]string](summaryCacheSize)
	return &Store{
		path:         path,
		byID:         make(map[string]projectRecord),
		summaryCache: cache,
	}
}

// NewPostgres returns a postgres-backed store using the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, map[int]string](summaryCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, summaryCache: cache}, nil
}

// GetContext returns the stored global-context document for a project.
func (s *Store) GetContext(projectID string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return "", false, fmt.Errorf("project_id is required")
	}
	if s.db != nil {
		return s.getContextDB(id)
	}
	return s.getContextFile(id)
}

// PutContext stores the global-context document for a project.
func (s *Store) PutContext(projectID, doc string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return fmt.Errorf("project_id is required")
	}
	if s.db != nil {
		return s.putContextDB(id, doc)
	}
	return s.putContextFile(id, doc)
}

// GetTodos returns the persisted todo list for a project, in index order.
func (s *Store) GetTodos(projectID string) ([]TodoRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if s.db != nil {
		return s.getTodosDB(id)
	}
	return s.getTodosFile(id)
}

// PutTodos replaces the persisted todo list for a project.
func (s *Store) PutTodos(projectID string, todos []TodoRecord) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return fmt.Errorf("project_id is required")
	}
	norm := make([]TodoRecord, len(todos))
	for i, td := range todos {
		td.Status = normalizeStatus(td.Status)
		norm[i] = td
	}
	if s.db != nil {
		return s.putTodosDB(id, norm)
	}
	return s.putTodosFile(id, norm)
}

// GetSummaries returns the completed-item summaries for a project, keyed by
// item index. The result is cached; PutSummary invalidates.
func (s *Store) GetSummaries(projectID string) (map[int]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if s.summaryCache != nil {
		if cached, ok := s.summaryCache.Get(id); ok {
			return copySummaries(cached), nil
		}
	}
	var (
		out map[int]string
		err error
	)
	if s.db != nil {
		out, err = s.getSummariesDB(id)
	} else {
		out, err = s.getSummariesFile(id)
	}
	if err != nil {
		return nil, err
	}
	if s.summaryCache != nil {
		s.summaryCache.Add(id, copySummaries(out))
	}
	return out, nil
}

// PutSummary records the summary for a completed item. The mapping is
// append/update-only: existing indexes are overwritten, never removed.
func (s *Store) PutSummary(projectID string, index int, summary string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id := normalizeProjectID(projectID)
	if id == "" {
		return fmt.Errorf("project_id is required")
	}
	if index < 0 {
		return fmt.Errorf("index must be non-negative")
	}
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("summary is required")
	}
	var err error
	if s.db != nil {
		err = s.putSummaryDB(id, index, summary)
	} else {
		err = s.putSummaryFile(id, index, summary)
	}
	if err == nil && s.summaryCache != nil {
		s.summaryCache.Remove(id)
	}
	return err
}

// Close releases the database handle when the postgres backend is active.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func copySummaries(in map[int]string) map[int]string {
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

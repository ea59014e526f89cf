package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	return New(path), path
}

func TestContextRoundTrip(t *testing.T) {
	s, _ := newFileStore(t)
	if _, ok, err := s.GetContext("p1"); err != nil || ok {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}
	if err := s.PutContext("p1", "the plan"); err != nil {
		t.Fatalf("PutContext: %v", err)
	}
	doc, ok, err := s.GetContext("p1")
	if err != nil || !ok || doc != "the plan" {
		t.Fatalf("got doc=%q ok=%v err=%v", doc, ok, err)
	}
}

func TestTodosRoundTripAndNormalization(t *testing.T) {
	s, _ := newFileStore(t)
	in := []TodoRecord{
		{Index: 0, Description: "first", Status: StatusActive},
		{Index: 1, Description: "second", Status: "bogus"},
	}
	if err := s.PutTodos("p1", in); err != nil {
		t.Fatalf("PutTodos: %v", err)
	}
	out, err := s.GetTodos("p1")
	if err != nil {
		t.Fatalf("GetTodos: %v", err)
	}
	if len(out) != 2 || out[0].Status != StatusActive || out[1].Status != StatusPending {
		t.Fatalf("todos: %+v", out)
	}
}

func TestSummariesSurviveReload(t *testing.T) {
	s, path := newFileStore(t)
	if err := s.PutSummary("p1", 0, "done setup"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	if err := s.PutSummary("p1", 1, "wired handlers"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}

	// Fresh store over the same file simulates a new session.
	s2 := New(path)
	got, err := s2.GetSummaries("p1")
	if err != nil {
		t.Fatalf("GetSummaries: %v", err)
	}
	if got[0] != "done setup" || got[1] != "wired handlers" {
		t.Fatalf("summaries: %v", got)
	}
}

func TestPutSummaryValidates(t *testing.T) {
	s, _ := newFileStore(t)
	if err := s.PutSummary("p1", 0, "  "); err == nil {
		t.Fatalf("empty summary must be rejected")
	}
	if err := s.PutSummary("p1", -1, "x"); err == nil {
		t.Fatalf("negative index must be rejected")
	}
	if err := s.PutSummary("", 0, "x"); err == nil {
		t.Fatalf("empty project must be rejected")
	}
}

func TestSummaryOverwriteUpdatesCache(t *testing.T) {
	s, _ := newFileStore(t)
	if err := s.PutSummary("p1", 0, "v1"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	if got, _ := s.GetSummaries("p1"); got[0] != "v1" {
		t.Fatalf("summaries: %v", got)
	}
	if err := s.PutSummary("p1", 0, "v2"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	if got, _ := s.GetSummaries("p1"); got[0] != "v2" {
		t.Fatalf("cache must be invalidated on write: %v", got)
	}
}

// A database that cannot be reached must surface the failure; "no context
// stored" is reserved for a clean no-rows answer.
func TestGetContextSurfacesDatabaseErrors(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://u:p@127.0.0.1:1/tasks?sslmode=disable&connect_timeout=1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cache, err := lru.New[string, map[int]string](8)
	if err != nil {
		t.Fatalf("lru: %v", err)
	}
	s := &Store{db: db, summaryCache: cache}
	// Burn the schema guard so the read path itself is what fails.
	s.schemaOnce.Do(func() {})

	if _, ok, err := s.GetContext("p1"); err == nil || ok {
		t.Fatalf("unreachable database: ok=%v err=%v, want surfaced error", ok, err)
	}
}

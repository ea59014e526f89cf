package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []projectRecord
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := normalizeProjectID(row.ProjectID)
			if id == "" {
				continue
			}
			s.byID[id] = row
		}
	})
}

func (s *Store) saveFileLocked() error {
	rows := make([]projectRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		rows = append(rows, rec)
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) getContextFile(id string) (string, bool, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok || rec.GlobalContext == "" {
		return "", false, nil
	}
	return rec.GlobalContext, true, nil
}

func (s *Store) putContextFile(id, doc string) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.byID[id]
	rec.ProjectID = id
	rec.GlobalContext = doc
	s.byID[id] = rec
	return s.saveFileLocked()
}

func (s *Store) getTodosFile(id string) ([]TodoRecord, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	rec := s.byID[id]
	s.mu.RUnlock()
	out := make([]TodoRecord, len(rec.Todos))
	copy(out, rec.Todos)
	return out, nil
}

func (s *Store) putTodosFile(id string, todos []TodoRecord) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.byID[id]
	rec.ProjectID = id
	rec.Todos = append([]TodoRecord(nil), todos...)
	s.byID[id] = rec
	return s.saveFileLocked()
}

func (s *Store) getSummariesFile(id string) (map[int]string, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	rec := s.byID[id]
	s.mu.RUnlock()
	return copySummaries(rec.Summaries), nil
}

func (s *Store) putSummaryFile(id string, index int, summary string) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.byID[id]
	rec.ProjectID = id
	if rec.Summaries == nil {
		rec.Summaries = make(map[int]string)
	}
	rec.Summaries[index] = summary
	s.byID[id] = rec
	if err := s.saveFileLocked(); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}
	return nil
}

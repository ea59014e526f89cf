package store

import (
	"database/sql"
	"errors"
)

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS task_contexts (
  project_id TEXT PRIMARY KEY,
  doc TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS task_todos (
  project_id TEXT NOT NULL,
  idx INT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  PRIMARY KEY (project_id, idx)
);

CREATE TABLE IF NOT EXISTS task_summaries (
  project_id TEXT NOT NULL,
  idx INT NOT NULL,
  summary TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  PRIMARY KEY (project_id, idx)
);
`)
	})
	return s.schemaErr
}

func (s *Store) getContextDB(id string) (string, bool, error) {
	if err := s.ensureSchema(); err != nil {
		return "", false, err
	}
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM task_contexts WHERE project_id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if doc == "" {
		return "", false, nil
	}
	return doc, true, nil
}

func (s *Store) putContextDB(id, doc string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
INSERT INTO task_contexts (project_id, doc) VALUES ($1, $2)
ON CONFLICT (project_id) DO UPDATE SET doc = EXCLUDED.doc`, id, doc)
	return err
}

func (s *Store) getTodosDB(id string) ([]TodoRecord, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT idx, description, status
FROM task_todos WHERE project_id = $1 ORDER BY idx ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TodoRecord
	for rows.Next() {
		var td TodoRecord
		if err := rows.Scan(&td.Index, &td.Description, &td.Status); err != nil {
			return nil, err
		}
		td.Status = normalizeStatus(td.Status)
		out = append(out, td)
	}
	return out, rows.Err()
}

func (s *Store) putTodosDB(id string, todos []TodoRecord) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM task_todos WHERE project_id = $1`, id); err != nil {
		return err
	}
	for _, td := range todos {
		if _, err := tx.Exec(`
INSERT INTO task_todos (project_id, idx, description, status)
VALUES ($1, $2, $3, $4)`, id, td.Index, td.Description, string(td.Status)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) getSummariesDB(id string) (map[int]string, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT idx, summary FROM task_summaries WHERE project_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var idx int
		var summary string
		if err := rows.Scan(&idx, &summary); err != nil {
			return nil, err
		}
		out[idx] = summary
	}
	return out, rows.Err()
}

func (s *Store) putSummaryDB(id string, index int, summary string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
INSERT INTO task_summaries (project_id, idx, summary) VALUES ($1, $2, $3)
ON CONFLICT (project_id, idx) DO UPDATE SET summary = EXCLUDED.summary`, id, index, summary)
	return err
}

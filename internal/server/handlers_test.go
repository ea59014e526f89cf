package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskweave/internal/command"
	"taskweave/internal/llm"
	"taskweave/internal/project"
	"taskweave/internal/safeio"
	"taskweave/internal/store"
	"taskweave/internal/task"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	st := store.New(filepath.Join(t.TempDir(), "store.json"))
	collab := task.NewCollaborators(llm.NewFakeClient())
	h := &Handler{
		Projects:  project.NewManager(),
		Executor:  &command.Executor{},
		Tasks:     task.NewOrchestrator(st, collab, collab, collab, nil),
		Describer: project.NewFileDescriber(llm.NewFakeClient()),
	}
	srv := httptest.NewServer(NewMux(h))
	t.Cleanup(srv.Close)
	return srv, root
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func registerProject(t *testing.T, srv *httptest.Server, id, root string) {
	t.Helper()
	code := postJSON(t, srv.URL+"/api/projects", map[string]string{"id": id, "root": root}, nil)
	if code != http.StatusOK {
		t.Fatalf("register project: status %d", code)
	}
}

func TestRespondExecutesCommandsAndFulfilsRequests(t *testing.T) {
	srv, root := newTestServer(t)
	registerProject(t, srv, "p1", root)

	if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("remember this"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	text := "Creating the config now.\n" +
		"```json\n" +
		`{"command": "Create", "fileName": "app/config.json", "content": "{}"}` + "\n" +
		"```\n" +
		`I also need {"files": ["notes.md"]} to continue.`

	var resp struct {
		Results []struct {
			Command  string `json:"command"`
			FileName string `json:"fileName"`
			Success  bool   `json:"success"`
		} `json:"results"`
		FilesRequested []string `json:"filesRequested"`
		Reinjection    string   `json:"reinjection"`
	}
	code := postJSON(t, srv.URL+"/api/respond", map[string]string{"projectId": "p1", "text": text}, &resp)
	if code != http.StatusOK {
		t.Fatalf("respond: status %d", code)
	}
	if len(resp.Results) != 1 || !resp.Results[0].Success {
		t.Fatalf("results = %+v, want one successful create", resp.Results)
	}
	if _, err := os.Stat(filepath.Join(root, "app", "config.json")); err != nil {
		t.Fatalf("created file missing: %v", err)
	}
	if len(resp.FilesRequested) != 1 || resp.FilesRequested[0] != "notes.md" {
		t.Fatalf("files requested = %v", resp.FilesRequested)
	}
	if !strings.Contains(resp.Reinjection, "remember this") {
		t.Fatalf("reinjection missing file content:\n%s", resp.Reinjection)
	}
	if strings.Contains(resp.Reinjection, `{"files"`) {
		t.Fatalf("reinjection still contains raw request:\n%s", resp.Reinjection)
	}
}

func TestStatusForDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{project.ErrUnknownProject, http.StatusNotFound},
		{task.ErrNoTask, http.StatusNotFound},
		{task.ErrBadState, http.StatusConflict},
		{task.ErrEmptySummary, http.StatusConflict},
		{safeio.ErrNoProject, http.StatusConflict},
		{task.ErrCollaborator, http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(fmt.Errorf("wrapped: %w", tc.err)); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRespondUnknownProject(t *testing.T) {
	srv, _ := newTestServer(t)
	code := postJSON(t, srv.URL+"/api/respond", map[string]string{"projectId": "nope", "text": "hi"}, nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestTaskFlowOverHTTP(t *testing.T) {
	srv, root := newTestServer(t)
	registerProject(t, srv, "p1", root)

	var snap task.Snapshot
	code := postJSON(t, srv.URL+"/api/task/start", map[string]string{"projectId": "p1", "description": "add a login page"}, &snap)
	if code != http.StatusOK {
		t.Fatalf("task start: status %d", code)
	}
	if snap.State != task.StateClarifying {
		t.Fatalf("state = %s, want %s", snap.State, task.StateClarifying)
	}

	answer := map[string]string{"projectId": "p1", "answer": "use existing auth"}
	if code := postJSON(t, srv.URL+"/api/task/answer", answer, &snap); code != http.StatusOK {
		t.Fatalf("answer 1: status %d", code)
	}
	answer["answer"] = "no social login"
	if code := postJSON(t, srv.URL+"/api/task/answer", answer, &snap); code != http.StatusOK {
		t.Fatalf("answer 2: status %d", code)
	}
	if snap.State != task.StateExecuting {
		t.Fatalf("state = %s, want %s", snap.State, task.StateExecuting)
	}

	if code := postJSON(t, srv.URL+"/api/task/transcript", map[string]string{"projectId": "p1", "entry": "agent: wired the handler"}, &snap); code != http.StatusOK {
		t.Fatalf("transcript: status %d", code)
	}

	resp, err := http.Get(srv.URL + "/api/task/prompt?project_id=p1")
	if err != nil {
		t.Fatalf("GET prompt: %v", err)
	}
	defer resp.Body.Close()
	var promptResp struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&promptResp); err != nil {
		t.Fatalf("decode prompt: %v", err)
	}
	if !strings.Contains(promptResp.Prompt, "agent: wired the handler") {
		t.Fatalf("prompt missing transcript:\n%s", promptResp.Prompt)
	}

	if code := postJSON(t, srv.URL+"/api/task/complete", map[string]string{"projectId": "p1", "summary": "handler wired"}, &snap); code != http.StatusOK {
		t.Fatalf("complete: status %d", code)
	}
	if snap.ActiveIndex != 1 {
		t.Fatalf("active index = %d, want 1", snap.ActiveIndex)
	}

	// Empty summary is refused with a conflict.
	if code := postJSON(t, srv.URL+"/api/task/complete", map[string]string{"projectId": "p1", "summary": " "}, nil); code != http.StatusConflict {
		t.Fatalf("empty summary: status %d, want %d", code, http.StatusConflict)
	}
}

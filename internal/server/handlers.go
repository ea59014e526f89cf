package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"taskweave/internal/archive"
	"taskweave/internal/command"
	"taskweave/internal/filereq"
	"taskweave/internal/project"
	"taskweave/internal/safeio"
	"taskweave/internal/task"
)

// Handler carries the wired services behind the JSON endpoints.
type Handler struct {
	Projects  *project.Manager
	Executor  *command.Executor
	Tasks     *task.Orchestrator
	Describer *project.FileDescriber
	Archive   *archive.Archive // optional
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, project.ErrUnknownProject), errors.Is(err, task.ErrNoTask):
		return http.StatusNotFound
	case errors.Is(err, task.ErrBadState), errors.Is(err, task.ErrEmptySummary),
		errors.Is(err, safeio.ErrNoProject):
		return http.StatusConflict
	case errors.Is(err, task.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type registerProjectRequest struct {
	ID   string `json:"id"`
	Root string `json:"root"`
}

func (h *Handler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"projects": h.Projects.IDs()})
	case http.MethodPost:
		var req registerProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		handle, err := h.Projects.Register(req.ID, req.Root)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": handle.ID, "root": handle.Root})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type respondRequest struct {
	ProjectID string `json:"projectId"`
	Text      string `json:"text"`
}

type commandOutcome struct {
	Command  string `json:"command"`
	FileName string `json:"fileName"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type respondResponse struct {
	Results        []commandOutcome `json:"results"`
	FilesRequested []string         `json:"filesRequested,omitempty"`
	Reinjection    string           `json:"reinjection,omitempty"`
}

// HandleRespond runs the full agent response pipeline: extract and execute
// embedded commands, then fulfil any file request and produce the rewritten
// text to send back to the agent. Both halves run under the project lock so
// reads observe the writes of the same response.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req respondRequest
	if !decodeBody(w, r, &req) {
		return
	}
	handle, err := h.Projects.Get(req.ProjectID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	handle.Mu.Lock()
	defer handle.Mu.Unlock()

	results := h.Executor.ProcessResponse(r.Context(), handle.FS, req.Text)
	resp := respondResponse{Results: make([]commandOutcome, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, commandOutcome{
			Command:  string(res.Command.Kind),
			FileName: res.Command.FileName,
			Success:  res.Success,
			Error:    res.ErrorMessage(),
		})
	}

	if freq, ok := filereq.Detect(req.Text); ok {
		out, err := filereq.Fulfil(r.Context(), handle.FS, freq)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		resp.FilesRequested = freq.Files
		resp.Reinjection = filereq.Rewrite(req.Text, freq, filereq.Format(out))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleFiles lists the project tree, optionally filtered by extension via
// a comma-separated ext query parameter.
func (h *Handler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	handle, err := h.Projects.Get(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	var files []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ext")); raw != "" {
		files, err = handle.FilesWithExtensions(strings.Split(raw, ","))
	} else {
		files, err = handle.Files()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projectId": handle.ID, "files": files})
}

func (h *Handler) HandleFileDescription(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	desc, ok := h.Describer.Description(path)
	if !ok {
		http.Error(w, "no description recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "description": desc})
}

type taskStartRequest struct {
	ProjectID   string `json:"projectId"`
	Description string `json:"description"`
}

func (h *Handler) HandleTaskStart(w http.ResponseWriter, r *http.Request) {
	var req taskStartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.Tasks.StartTask(r.Context(), req.ProjectID, req.Description)
	h.writeSnapshot(w, snap, err)
}

type taskAnswerRequest struct {
	ProjectID string `json:"projectId"`
	Answer    string `json:"answer"`
	Direction string `json:"direction"` // "next" (default) or "previous"
}

func (h *Handler) HandleTaskAnswer(w http.ResponseWriter, r *http.Request) {
	var req taskAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		snap task.Snapshot
		err  error
	)
	if strings.EqualFold(strings.TrimSpace(req.Direction), "previous") {
		snap, err = h.Tasks.AnswerPrevious(req.ProjectID, req.Answer)
	} else {
		snap, err = h.Tasks.AnswerNext(r.Context(), req.ProjectID, req.Answer)
	}
	h.writeSnapshot(w, snap, err)
}

type taskProjectRequest struct {
	ProjectID string `json:"projectId"`
}

func (h *Handler) HandleTaskRetryTodos(w http.ResponseWriter, r *http.Request) {
	var req taskProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.Tasks.GenerateTodos(r.Context(), req.ProjectID)
	h.writeSnapshot(w, snap, err)
}

type taskTranscriptRequest struct {
	ProjectID string `json:"projectId"`
	Entry     string `json:"entry"`
}

func (h *Handler) HandleTaskTranscript(w http.ResponseWriter, r *http.Request) {
	var req taskTranscriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Tasks.AppendTranscript(req.ProjectID, req.Entry); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.Tasks.Snapshot(req.ProjectID))
}

func (h *Handler) HandleTaskPrompt(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	prompt, err := h.Tasks.BuildPrompt(projectID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"projectId": projectID, "prompt": prompt})
}

type taskCompleteRequest struct {
	ProjectID string `json:"projectId"`
	Summary   string `json:"summary"`
}

func (h *Handler) HandleTaskComplete(w http.ResponseWriter, r *http.Request) {
	var req taskCompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.Tasks.CompleteActiveItem(r.Context(), req.ProjectID, req.Summary)
	h.writeSnapshot(w, snap, err)
}

func (h *Handler) HandleTaskItem(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	index, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("index")))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	item, err := h.Tasks.ReopenItem(projectID, index)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := map[string]any{"item": item}
	if h.Archive != nil {
		transcript, err := h.Archive.GetTranscript(r.Context(), projectID, index)
		if err == nil {
			resp["transcript"] = transcript
		} else if !errors.Is(err, archive.ErrNotFound) {
			log.Printf("fetch archived transcript %s/%d: %v", projectID, index, err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleTaskState(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if projectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Tasks.Snapshot(projectID))
}

func (h *Handler) HandleTaskTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		http.Error(w, "transcript archive disabled", http.StatusNotFound)
		return
	}
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	keys, err := h.Archive.List(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projectId": projectID, "transcripts": keys})
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, snap task.Snapshot, err error) {
	if err != nil {
		status := statusFor(err)
		writeJSON(w, status, map[string]any{"error": err.Error(), "state": snap})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

package server

import (
	"net/http"

	"taskweave/internal/server/middleware"
)

func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/projects", h.HandleProjects)
	mux.HandleFunc("/api/respond", h.HandleRespond)
	mux.HandleFunc("/api/files", h.HandleFiles)
	mux.HandleFunc("/api/files/description", h.HandleFileDescription)

	mux.HandleFunc("/api/task/start", h.HandleTaskStart)
	mux.HandleFunc("/api/task/answer", h.HandleTaskAnswer)
	mux.HandleFunc("/api/task/todos/retry", h.HandleTaskRetryTodos)
	mux.HandleFunc("/api/task/transcript", h.HandleTaskTranscript)
	mux.HandleFunc("/api/task/prompt", h.HandleTaskPrompt)
	mux.HandleFunc("/api/task/complete", h.HandleTaskComplete)
	mux.HandleFunc("/api/task/item", h.HandleTaskItem)
	mux.HandleFunc("/api/task/state", h.HandleTaskState)
	mux.HandleFunc("/api/task/transcripts", h.HandleTaskTranscripts)

	mux.HandleFunc("/ws/task", h.HandleTaskWS)

	return middleware.CORS(mux)
}

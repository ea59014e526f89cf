package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"taskweave/internal/task"
)

const (
	taskWSWriteWait = 10 * time.Second
	taskWSPongWait  = 60 * time.Second
	taskWSPingEvery = (taskWSPongWait * 9) / 10
)

var taskWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type taskWSInbound struct {
	Type        string `json:"type"`
	ProjectID   string `json:"projectId,omitempty"`
	Description string `json:"description,omitempty"`
	Answer      string `json:"answer,omitempty"`
	Entry       string `json:"entry,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

type taskWSOutbound struct {
	Type    string         `json:"type"`
	State   *task.Snapshot `json:"state,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// HandleTaskWS streams task state snapshots for one project and accepts the
// same actions as the JSON endpoints over the socket.
func (h *Handler) HandleTaskWS(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if projectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	conn, err := taskWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(taskWSPongWait)); err != nil {
		log.Printf("task ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(taskWSPongWait))
	})

	writeCh := make(chan taskWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(taskWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(taskWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(taskWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		for snap := range h.Tasks.Subscribe(ctx, projectID) {
			s := snap
			pushTaskWS(writeCh, taskWSOutbound{Type: "state", State: &s})
		}
	}()

	for {
		var in taskWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		msgType := strings.ToLower(strings.TrimSpace(in.Type))
		if msgType == "" {
			pushTaskWS(writeCh, taskWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type is required",
			})
			continue
		}
		if v := strings.TrimSpace(in.ProjectID); v != "" && v != projectID {
			pushTaskWS(writeCh, taskWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "projectId mismatch",
			})
			continue
		}

		var actionErr error
		switch msgType {
		case "ping":
			pushTaskWS(writeCh, taskWSOutbound{Type: "pong"})
			continue
		case "start":
			_, actionErr = h.Tasks.StartTask(ctx, projectID, in.Description)
		case "answer_next":
			_, actionErr = h.Tasks.AnswerNext(ctx, projectID, in.Answer)
		case "answer_previous":
			_, actionErr = h.Tasks.AnswerPrevious(projectID, in.Answer)
		case "retry_todos":
			_, actionErr = h.Tasks.GenerateTodos(ctx, projectID)
		case "append":
			actionErr = h.Tasks.AppendTranscript(projectID, in.Entry)
		case "complete":
			_, actionErr = h.Tasks.CompleteActiveItem(ctx, projectID, in.Summary)
		default:
			pushTaskWS(writeCh, taskWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + msgType,
			})
			continue
		}
		if actionErr != nil {
			pushTaskWS(writeCh, taskWSOutbound{
				Type:    "error",
				Code:    "failed_precondition",
				Message: actionErr.Error(),
			})
			continue
		}
		snap := h.Tasks.Snapshot(projectID)
		pushTaskWS(writeCh, taskWSOutbound{Type: "ack", State: &snap})
	}
}

// pushTaskWS never blocks: under pressure it drops the oldest queued
// message so the freshest state wins.
func pushTaskWS(writeCh chan taskWSOutbound, out taskWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/enerbat/bacs-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const streamPingInterval = 30 * time.Second

// handleResultStream upgrades to a websocket and pushes the project
// result on every recompute. The current result is sent immediately so
// the client never renders an empty state.
func (s *Server) handleResultStream(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	result, err := s.service.Result(r.Context(), project.ID)
	if err != nil {
		slog.Error("failed to compute result for stream", "error", err, "id", project.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compute result")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("result stream connected", "project_id", project.ID)

	updates, cancel := s.service.Subscribe(project.ID)
	defer cancel()

	if err := sendResult(conn, *result); err != nil {
		return
	}

	// Reader goroutine: we never expect client messages, but reading is
	// how close frames are detected.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("result stream read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("result stream disconnected", "project_id", project.ID)
			return
		case update, open := <-updates:
			if !open {
				return
			}
			if err := sendResult(conn, update); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("result stream ping failed", "error", err)
				return
			}
		}
	}
}

func sendResult(conn *websocket.Conn, result models.ProjectResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal result", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to push result", "error", err)
		return err
	}
	return nil
}

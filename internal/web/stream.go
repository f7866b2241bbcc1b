package web

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	websocket "github.com/gorilla/websocket"
	logger "github.com/inference-gateway/adgate/internal/logger"
	zap "go.uber.org/zap"
)

const streamWriteTimeout = 10 * time.Second

// handleStreamTask upgrades to a websocket and writes the task's progress
// events as JSON text frames until the terminal event, then closes normally.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if _, err := s.deps.Tasks.OwnedTask(taskID, identityFrom(r.Context()).UserID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L(r.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.L(r.Context()).Debug("failed to close websocket", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the client only sends control frames; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, err := s.deps.Tasks.Stream(ctx, taskID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}

	log := logger.L(r.Context()).With(zap.String("task_id", taskID))
	log.Debug("task stream opened")

	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug("task stream write failed", zap.Error(err))
			return
		}
	}

	if ctx.Err() == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"))
	}
	log.Debug("task stream closed")
}

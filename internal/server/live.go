package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"issueboard/internal/board"
	"issueboard/internal/live"
)

// handleLive upgrades to a WebSocket and serves one board session on it.
// An optional token query parameter resumes a previous session.
func (s *Server) handleLive(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.allowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	session := board.NewSession(s.auth, s.store, s.metrics)
	live.NewClient(conn, session, s.logger, s.metrics).Run(c.Request.Context(), c.Query("token"))
}

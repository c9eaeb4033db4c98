package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams live audit records to the client until either side
// disconnects. Missed ids are recoverable through /api/audit/events.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.Hub == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"audit stream disabled"}`))
		return
	}

	stream, unsub := s.Hub.Subscribe(100)
	defer unsub()

	for record := range stream {
		if err := conn.WriteJSON(record); err != nil {
			s.Log.Debug("ws write failed, closing", zap.Error(err))
			return
		}
	}
}

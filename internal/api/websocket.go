package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"webhook-trader/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams order lifecycle events to connected clients.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	opened := s.Bus.Subscribe(events.EventOrderOpened, 100)
	defer opened.Close()
	closed := s.Bus.Subscribe(events.EventPositionClosed, 100)
	defer closed.Close()

	type frame struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}
	for {
		select {
		case msg, ok := <-opened.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame{Type: string(events.EventOrderOpened), Payload: msg}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case msg, ok := <-closed.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame{Type: string(events.EventPositionClosed), Payload: msg}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

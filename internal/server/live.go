package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const livePushInterval = 2 * time.Second

// handleLive streams the stats payload over a WebSocket so the dashboard can
// follow a batch run without polling. The stream ends when the client closes
// the connection or the request context is cancelled.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Drain client messages so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	for {
		stats, err := s.collectStats(r)
		if err != nil {
			log.Printf("server: collecting live stats: %v", err)
			return
		}
		if err := conn.WriteJSON(stats); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket write: %v", err)
			}
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// statsUpgrader allows any origin: this is an admin/debug surface meant
// for local dashboards, not a public endpoint.
var statsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statsSnapshot is the same shape as /debug/pool, pushed to every
// connected client on a tick.
type statsSnapshot struct {
	Pool      interface{} `json:"pool"`
	Replacer  interface{} `json:"replacer"`
	Scheduler interface{} `json:"scheduler"`
}

// handleStatsWebSocket upgrades the connection and pushes a stats
// snapshot every s.config.StatsInterval until the client disconnects or
// a write fails.
func (s *Server) handleStatsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := statsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("crabdb: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	interval := s.config.StatsInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Detect client-initiated close by draining reads in the background;
	// gorilla/websocket requires a read loop to process control frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			snap := statsSnapshot{
				Pool:      s.eng.Pool().Stats(),
				Replacer:  s.eng.Pool().ReplacerStats(),
				Scheduler: s.eng.Pool().SchedulerStats(),
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("crabdb: marshal stats snapshot: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

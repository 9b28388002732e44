package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// statusPollInterval is how often the stream re-checks the registry.
const statusPollInterval = time.Second

// maxWatchTime caps how long a status stream stays open before the
// server closes it.
const maxWatchTime = 5 * time.Minute

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is same-host interactive tooling; origin checks are
	// left to a fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusUpdate is one frame on the query status stream.
type statusUpdate struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Query   string `json:"query"`
	Time    string `json:"time"`

	Answer string `json:"final_answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleQueryStream pushes status updates for one query until it
// completes, fails, or the watch window expires.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if _, ok := s.registry.Get(id); !ok {
		_ = conn.WriteJSON(map[string]string{"error": "未找到查询ID: " + id})
		return
	}

	deadline := time.Now().Add(maxWatchTime)
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		q, ok := s.registry.Get(id)
		if !ok {
			_ = conn.WriteJSON(map[string]string{"error": "查询已不存在"})
			return
		}

		update := statusUpdate{
			QueryID: q.ID,
			Status:  q.Status,
			Query:   q.Text,
			Time:    time.Now().Format(time.RFC3339),
		}
		terminal := false
		switch q.Status {
		case StatusCompleted:
			update.Answer = q.Answer
			terminal = true
		case StatusFailed:
			update.Error = q.Error
			terminal = true
		}

		if err := conn.WriteJSON(update); err != nil {
			s.logger.Debug("websocket write failed", "query_id", id, "error", err)
			return
		}
		if terminal || time.Now().After(deadline) {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func dialQueryStream(t *testing.T, s *Server, id string) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/query/{id}", s.handleQueryStream)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/query/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestQueryStreamCompletedQuery(t *testing.T) {
	s := newTestServer(t)
	q := s.registry.Create("深圳到珠海怎么走")
	s.registry.SetProcessing(q.ID)
	s.registry.SetCompleted(q.ID, "经港珠澳大桥。", "transcript")

	conn := dialQueryStream(t, s, q.ID)

	var update statusUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if update.Status != StatusCompleted || update.Answer != "经港珠澳大桥。" {
		t.Errorf("update = %+v", update)
	}
	if update.QueryID != q.ID || update.Query != "深圳到珠海怎么走" {
		t.Errorf("update = %+v", update)
	}

	// Terminal frame, then the server closes the stream.
	if err := conn.ReadJSON(&update); err == nil {
		t.Error("expected stream to close after the terminal frame")
	}
}

func TestQueryStreamFailedQuery(t *testing.T) {
	s := newTestServer(t)
	q := s.registry.Create("please fail")
	s.registry.SetFailed(q.ID, "orchestration failed")

	conn := dialQueryStream(t, s, q.ID)

	var update statusUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if update.Status != StatusFailed || update.Error != "orchestration failed" {
		t.Errorf("update = %+v", update)
	}
}

func TestQueryStreamUnknownID(t *testing.T) {
	s := newTestServer(t)
	conn := dialQueryStream(t, s, "nope")

	var frame map[string]string
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !strings.Contains(frame["error"], "未找到查询ID") {
		t.Errorf("frame = %v", frame)
	}
}

package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/broadcast"
	"timed-quiz-service/internal/domain"
)

func TestWebSocketReceivesCurrentStateThenUpdates(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	ev := readEvent(t, conn)
	if ev.Type != broadcast.EventQuizStateUpdate || ev.Payload.State != domain.PhaseWaiting {
		t.Fatalf("expected initial waiting state, got %+v", ev)
	}

	admin := ts.users["admin"].Identity()
	if _, err := ts.service.StartQuiz(context.Background(), admin); err != nil {
		t.Fatalf("start: %v", err)
	}
	ev = readEvent(t, conn)
	if ev.Payload.State != domain.PhaseStarted || ev.Payload.StartTime == nil {
		t.Fatalf("expected started broadcast, got %+v", ev)
	}
}

func TestWebSocketAnswersApplicationPing(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	readEvent(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var msg struct {
		Type string `json:"type"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if msg.Type != "pong" {
		t.Fatalf("expected pong, got %q", msg.Type)
	}
}

func TestWebSocketEvictsUnresponsiveClient(t *testing.T) {
	ts := newTestServer(t, broadcast.WithHeartbeat(20*time.Millisecond, 50*time.Millisecond))
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	readEvent(t, conn)

	// not reading means pings are never answered
	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was not evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) broadcast.Event {
	t.Helper()
	var ev broadcast.Event
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arbiter/internal/events"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Register(conn, r.URL.Query().Get("user"), "contestant")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d, want %d", hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "alice")
	waitForCount(t, hub, 1)

	hub.HandleEvent(events.Event{
		Kind:       events.KindSubmissionEvaluated,
		Submission: "s1",
		Score:      0.5,
	})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != events.KindSubmissionEvaluated || ev.Submission != "s1" || ev.Score != 0.5 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	a := dial(t, srv, "alice")
	b := dial(t, srv, "bob")
	waitForCount(t, hub, 2)

	hub.Broadcast([]byte(`{"hello":true}`))

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != `{"hello":true}` {
			t.Fatalf("data = %s", data)
		}
	}
}

func TestHubKickDisconnectsUser(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	dial(t, srv, "alice")
	dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitForCount(t, hub, 3)

	kicked := hub.Kick("alice")
	if kicked != 2 {
		t.Fatalf("kicked = %d, want 2", kicked)
	}
	waitForCount(t, hub, 1)

	// Bob's connection still works.
	hub.Broadcast([]byte("still here"))
	_ = bob.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := bob.ReadMessage()
	if err != nil {
		t.Fatalf("read after kick: %v", err)
	}
	if string(data) != "still here" {
		t.Fatalf("data = %s", data)
	}
}

func TestHubPrunesClosedClients(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "alice")
	waitForCount(t, hub, 1)

	_ = conn.Close()
	waitForCount(t, hub, 0)
}

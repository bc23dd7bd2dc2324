package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/structbio-data/atomgrid/internal/batch"
)

func newHubServer(t *testing.T) (*EventHub, *httptest.Server) {
	t.Helper()

	hub := NewEventHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", hub.Handle)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		if err := hub.Close(); err != nil {
			t.Errorf("Failed to close hub: %v", err)
		}
	})

	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *EventHub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHubDeliversEvents(t *testing.T) {
	hub, srv := newHubServer(t)

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	sent := batch.Event{
		Type:          batch.EventFinished,
		Source:        "upload",
		Index:         3,
		Label:         "traj-3",
		ElapsedMs:     1.25,
		OccupiedCells: 42,
	}
	hub.Publish(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}

	var got batch.Event
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if got != sent {
		t.Errorf("Event = %+v, want %+v", got, sent)
	}
}

func TestEventHubBroadcastsToAllClients(t *testing.T) {
	hub, srv := newHubServer(t)

	first := dialHub(t, srv)
	defer first.Close()
	second := dialHub(t, srv)
	defer second.Close()
	waitForClients(t, hub, 2)

	hub.Publish(batch.Event{Type: batch.EventStarted, Source: "api", Index: 0})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Client %d failed to read event: %v", i, err)
		}
		var got batch.Event
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("Client %d failed to decode event: %v", i, err)
		}
		if got.Type != batch.EventStarted {
			t.Errorf("Client %d got type %q, want %q", i, got.Type, batch.EventStarted)
		}
	}
}

func TestEventHubPrunesDisconnectedClients(t *testing.T) {
	hub, srv := newHubServer(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Publishing to an empty hub must not block.
	hub.Publish(batch.Event{Type: batch.EventStarted})
}

func TestEventHubCloseDisconnectsClients(t *testing.T) {
	hub := NewEventHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", hub.Handle)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount after close = %d, want 0", n)
	}

	// The client sees the connection drop.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected a read error after hub close")
	}

	// Late publishes are dropped, not delivered or blocked on.
	hub.Publish(batch.Event{Type: batch.EventFailed})
}

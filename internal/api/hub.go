package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/structbio-data/atomgrid/internal/batch"
	"github.com/structbio-data/atomgrid/internal/monitoring"
)

// EventHub fans batch progress events out to connected websocket clients.
// Clients that stop reading are dropped rather than allowed to stall the
// pipeline.
type EventHub struct {
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bool
	upgrader   websocket.Upgrader
	broadcast  chan batch.Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewEventHub creates a hub and starts its broadcaster goroutine.
func NewEventHub() *EventHub {
	hub := &EventHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan batch.Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	hub.wg.Add(1)
	go hub.run()

	return hub
}

// Publish queues an event for broadcast. Events are dropped when the queue
// is full so a slow client can never block a voxelization run.
func (h *EventHub) Publish(ev batch.Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		monitoring.Logf("[EventHub] dropping %s event for %s[%d]: queue full", ev.Type, ev.Source, ev.Index)
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle upgrades an HTTP request to a websocket and subscribes it to
// events. The connection is read only to detect disconnects; incoming
// messages are discarded.
func (h *EventHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
				return
			}
		}
	}()
}

// run handles client registration and message broadcasting.
func (h *EventHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}

			// Snapshot the client set so writes happen outside the lock.
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			var dead []*websocket.Conn
			for _, conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					dead = append(dead, conn)
					conn.Close()
				}
			}

			if len(dead) > 0 {
				h.mu.Lock()
				for _, conn := range dead {
					delete(h.clients, conn)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Close disconnects all clients and stops the broadcaster.
func (h *EventHub) Close() error {
	close(h.done)

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

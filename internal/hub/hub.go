// Package hub fans cycle telemetry out to websocket observers. Slow or dead
// clients are dropped rather than ever stalling the trading loop.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the wire frame sent to observers.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Hub struct {
	log       *slog.Logger
	broadcast chan []byte

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		log:       logger,
		broadcast: make(chan []byte, 64),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run delivers queued frames to every connected client until the context
// ends. Write errors evict the client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues one event frame. Frames are dropped when the queue is full;
// observers are advisory and must not apply backpressure to the cycle.
func (h *Hub) Publish(event string, data any) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.log.Error("telemetry frame not serializable", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.log.Debug("telemetry frame dropped", "event", event)
	}
}

// Handler upgrades an HTTP request into an observer connection.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "error", err)
			return
		}
		h.mu.Lock()
		h.clients[conn] = true
		h.mu.Unlock()

		// Reader goroutine exists only to notice the client going away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.mu.Lock()
					if h.clients[conn] {
						conn.Close()
						delete(h.clients, conn)
					}
					h.mu.Unlock()
					return
				}
			}
		}()
	}
}

// ClientCount reports the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/trylia/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusSource reports the session status.
type StatusSource interface {
	Status() app.Status
}

// MetricsHandler broadcasts session status snapshots via WebSocket.
type MetricsHandler struct {
	source   StatusSource
	interval time.Duration
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	done     chan struct{}
	once     sync.Once
}

// NewMetricsHandler creates a MetricsHandler that broadcasts every interval.
func NewMetricsHandler(source StatusSource, interval time.Duration) *MetricsHandler {
	h := &MetricsHandler{
		source:   source,
		interval: interval,
		clients:  make(map[*websocket.Conn]bool),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *MetricsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster.
func (h *MetricsHandler) Close() {
	h.once.Do(func() { close(h.done) })
}

// broadcast sends status snapshots to all connected clients.
func (h *MetricsHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		msg, err := json.Marshal(h.source.Status())
		if err != nil {
			log.Printf("Error encoding status: %v", err)
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(h.interval * 4))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// The reader loop in ServeHTTP removes the client.
				conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}

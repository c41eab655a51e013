package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rugbuster/internal/logger"
)

// Change event types
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one change-feed delta. Row is omitted on deletes; clients apply
// deltas to their in-memory set keyed by ID instead of refetching.
type Event struct {
	Table string      `json:"table"`
	Type  string      `json:"type"`
	ID    uint        `json:"id"`
	Row   interface{} `json:"row,omitempty"`
}

// Publisher is what the services see: a sink for change events.
type Publisher interface {
	Publish(event Event)
}

// client wraps a connection with a write lock. gorilla/websocket allows
// only one concurrent writer per connection, and Publish is called from
// many request goroutines at once.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Hub fans change events out to connected websocket clients. It is a
// passive listener: it never reads application data and never mutates it.
type Hub struct {
	clients      map[*client]bool
	clientsMutex sync.RWMutex
	upgrader     websocket.Upgrader

	writeTimeout time.Duration
}

// NewHub creates a Hub ready to accept connections.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is handled by the CORS layer
			},
		},
		writeTimeout: 5 * time.Second,
	}
}

// HandleConnection upgrades the request and registers the client. The read
// loop only drains control frames; clients never send data.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return err
	}

	cl := &client{conn: ws}

	h.clientsMutex.Lock()
	h.clients[cl] = true
	count := len(h.clients)
	h.clientsMutex.Unlock()

	logger.Debug("change-feed client connected", zap.Int("clients", count))

	go h.readLoop(cl)
	return nil
}

func (h *Hub) readLoop(cl *client) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends the event to every connected client. Each connection's
// deadline and write happen under its write lock so concurrent mutations
// never interleave frames. Clients that cannot be written to in time are
// dropped.
func (h *Hub) Publish(event Event) {
	h.clientsMutex.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		snapshot = append(snapshot, cl)
	}
	h.clientsMutex.RUnlock()

	for _, cl := range snapshot {
		cl.writeMu.Lock()
		err := cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err == nil {
			err = cl.conn.WriteJSON(event)
		}
		cl.writeMu.Unlock()

		if err != nil {
			logger.Debug("dropping slow change-feed client", zap.Error(err))
			h.drop(cl)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(cl *client) {
	h.clientsMutex.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.conn.Close()
	}
	h.clientsMutex.Unlock()
}

// Package ws implements a WebSocket push hub. Clients connect over HTTP,
// identify themselves with a client_id query parameter and receive bus
// messages addressed to them as JSON text frames. The hub satisfies
// core.MessageBus so it can stand in for the in-memory bus in deployments
// where the front end connects remotely.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/logging"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 512 * 1024
)

// Options configures a Hub.
type Options struct {
	Logger logging.Logger

	// AcceptOptions are passed through to the WebSocket handshake.
	AcceptOptions *websocket.AcceptOptions
}

// Hub tracks connected clients and routes published messages to them.
// A message addressed to a client that is not connected is dropped;
// push updates carry no delivery guarantee.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn

	logger     logging.Logger
	acceptOpts *websocket.AcceptOptions
}

// NewHub constructs an empty Hub.
func NewHub(optFns ...func(o *Options)) *Hub {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Hub{
		clients:    make(map[string]*websocket.Conn),
		logger:     opts.Logger,
		acceptOpts: opts.AcceptOptions,
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers the
// client under its client_id query parameter. The connection is held open
// until the client disconnects; inbound frames are read and discarded to
// service control messages.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, h.acceptOpts)
	if err != nil {
		h.logger.Warn("websocket accept failed", "client_id", clientID, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)
	defer conn.CloseNow()

	h.register(clientID, conn)
	defer h.unregister(clientID, conn)
	h.logger.Info("client connected", "client_id", clientID)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			h.logger.Info("client disconnected", "client_id", clientID)
			return
		}
	}
}

// Publish implements core.MessageBus. Messages with broadcast visibility go
// to every connected client; everything else goes only to the recipient.
func (h *Hub) Publish(ctx context.Context, msg core.BusMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message %q: %w", msg.Type, err)
	}

	if msg.Visibility == core.VisibilityBroadcast {
		for id, conn := range h.snapshot() {
			h.send(ctx, id, conn, data)
		}
		return nil
	}

	h.mu.RLock()
	conn, ok := h.clients[msg.Recipient]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("dropping message for disconnected client", "client_id", msg.Recipient, "type", msg.Type)
		return nil
	}
	h.send(ctx, msg.Recipient, conn, data)
	return nil
}

// Connected reports whether a client currently holds a connection.
func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

func (h *Hub) send(ctx context.Context, clientID string, conn *websocket.Conn, data []byte) {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Warn("write to client failed", "client_id", clientID, "error", err)
	}
}

func (h *Hub) snapshot() map[string]*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]*websocket.Conn, len(h.clients))
	for id, conn := range h.clients {
		out[id] = conn
	}
	return out
}

func (h *Hub) register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[clientID]; ok {
		old.Close(websocket.StatusPolicyViolation, "superseded by new connection")
	}
	h.clients[clientID] = conn
}

func (h *Hub) unregister(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[clientID] == conn {
		delete(h.clients, clientID)
	}
}

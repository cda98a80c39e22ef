// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/game"
	"github.com/sirupsen/logrus"
)

const (
	sendBufferSize = 256
	writeTimeout   = 3 * time.Second
)

// client is one participant's socket with its own ordered outbound queue.
type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once

	dropped bool // queue closed for being too slow; guarded by Hub.mu
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub owns the sockets of one room. The game calls into it with its lock held, so the
// hub keeps a registry of its own and never touches the game; writes happen on each
// client's writer goroutine.
type Hub struct {
	gameID uuid.UUID
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[uuid.UUID]*client
}

// NewHub returns an empty hub for gameID.
func NewHub(gameID uuid.UUID, logger *logrus.Logger) *Hub {
	return &Hub{
		gameID:  gameID,
		logger:  logger,
		clients: make(map[uuid.UUID]*client),
	}
}

// Register attaches conn for userID and starts its writer. A previous socket of the
// same user is closed and replaced.
func (h *Hub) Register(userID uuid.UUID, conn *websocket.Conn) *client {
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = c
	h.mu.Unlock()

	if prev != nil {
		h.logger.Infof("game %s: replacing socket of %s", h.gameID, userID)
		prev.close()
		prev.conn.Close(websocket.StatusPolicyViolation, "connected from another socket")
	}
	go h.writePump(c)
	return c
}

// Unregister detaches c. It reports false when c had already been replaced by a newer
// socket, in which case the participant is still connected.
func (h *Hub) Unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.clients[c.userID]
	if !ok || cur != c {
		return false
	}
	delete(h.clients, c.userID)
	c.close()
	return true
}

// Broadcast queues ev for every socket in the room. It satisfies KaboomGame.BroadcastFn.
func (h *Hub) Broadcast(ev game.GameEvent) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueue(c, data)
	}
}

// SendTo queues ev for one participant. It satisfies KaboomGame.BroadcastToPlayerFn.
func (h *Hub) SendTo(userID uuid.UUID, ev game.GameEvent) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}
	h.SendRaw(userID, data)
}

// SendRaw queues an already encoded frame for one participant.
func (h *Hub) SendRaw(userID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[userID]; ok {
		h.enqueue(c, data)
	}
}

// Len returns the number of attached sockets, including dropped ones whose read loop
// has not yet unregistered them.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close detaches and closes every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// enqueue never blocks. A client whose queue is full is too slow to keep up: its
// queue is closed and its socket shut, but it stays registered so that its read loop
// still unregisters it and leaves the game.
// Assumes h.mu is held.
func (h *Hub) enqueue(c *client, data []byte) {
	if c.dropped {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warnf("game %s: send queue full for %s, dropping socket", h.gameID, c.userID)
		c.dropped = true
		c.close()
		go c.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

func (h *Hub) encode(ev game.GameEvent) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("game %s: failed to marshal %s: %v", h.gameID, ev.Type, err)
		return nil, false
	}
	return data, true
}

// writePump drains c.send in order until the queue is closed or a write fails.
func (h *Hub) writePump(c *client) {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Warnf("game %s: failed to write to %s: %v", h.gameID, c.userID, err)
			c.conn.Close(websocket.StatusInternalError, "write failed")
			for range c.send {
			}
			return
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kotgame/kot-server-go/internal/session"
	"go.uber.org/zap"
)

const (
	maxMessageSize = 8 << 10
	closeGrace     = time.Second
)

// Client is one WebSocket connection bound to a session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *session.Session
}

// Hub tracks live connections by player id. A player has at most one
// live connection; a newer one replaces the older.
type Hub struct {
	clients map[string]*Client
	closed  bool
	mu      sync.RWMutex
	logger  *zap.Logger

	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewHub creates a hub.
func NewHub(pingInterval, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		clients:      make(map[string]*Client),
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// Run blocks until ctx is cancelled and then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if old, ok := h.clients[c.session.ID]; ok && old != c {
		close(old.send)
	}
	h.clients[c.session.ID] = c
	h.logger.Debug("client registered", zap.String("player_id", c.session.ID))
	return true
}

// remove reports whether c was still the live connection of its player.
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.clients[c.session.ID]
	if !ok || current != c {
		return false
	}
	delete(h.clients, c.session.ID)
	close(c.send)
	h.logger.Debug("client unregistered", zap.String("player_id", c.session.ID))
	return true
}

// SendTo queues a message for a player without blocking. It reports
// whether the player had a live connection with room in its buffer.
func (h *Hub) SendTo(playerID string, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[playerID]
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		h.logger.Warn("dropping message for slow client", zap.String("player_id", playerID))
		return false
	}
}

// Connected counts live connections.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) sendJSON(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	c.hub.SendTo(c.session.ID, data)
}

// readPump feeds inbound messages to handle until the connection fails.
func (c *Client) readPump(handle func(*Client, Inbound), onClose func(*Client)) {
	defer func() {
		live := c.hub.remove(c)
		c.conn.Close()
		if live {
			onClose(c)
		}
	}()

	pongWait := c.hub.pingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("player_id", c.session.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.session.UpdateActivity()

		var msg Inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Debug("malformed message", zap.String("player_id", c.session.ID), zap.Error(err))
			c.sendJSON(errorMessage(0, errMalformed(err)))
			continue
		}
		handle(c, msg)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(closeGrace))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

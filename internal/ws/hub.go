// Package ws fans competition events out to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbiter/internal/events"
	"arbiter/pkg/utils/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBufSize  = 64
	maxMessageSize = 4096
)

// Client is one connected websocket subscriber.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
	role     string
}

// Hub owns the client set and broadcasts serialized events. Clients whose
// buffers are full are dropped, a slow reader must not stall the judge.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// HandleEvent implements events.Handler: every event is broadcast to all
// connected clients, with hidden-output redaction already applied upstream.
func (h *Hub) HandleEvent(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error(context.Background(), "marshal event failed", zap.Error(err))
		return
	}
	h.Broadcast(data)
}

// Broadcast sends raw bytes to every client, pruning dead ones.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// Register attaches a connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, username, role string) *Client {
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, clientBufSize),
		username: username,
		role:     role,
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Kick disconnects every session of one user.
func (h *Hub) Kick(username string) int {
	h.mu.Lock()
	var victims []*Client
	for client := range h.clients {
		if client.username == username {
			victims = append(victims, client)
			delete(h.clients, client)
			close(client.send)
		}
	}
	h.mu.Unlock()
	for _, client := range victims {
		_ = client.conn.Close()
	}
	return len(victims)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Inbound frames are ignored; the socket is one-way.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

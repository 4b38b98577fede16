package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendQueueSize = 32

// Conn is one connected client. Owned exclusively by the hub; destroyed on
// socket close, send-queue overflow, or auth failure.
type Conn struct {
	id   string
	sock *websocket.Conn
	hub  *Hub

	authenticated atomic.Bool

	topicMu sync.Mutex
	topics  map[string]struct{}

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(sock *websocket.Conn, h *Hub) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		sock:   sock,
		hub:    h,
		topics: make(map[string]struct{}),
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Hub returns the hub that owns this connection, for actions that need to
// broadcast rather than reply.
func (c *Conn) Hub() *Hub { return c.hub }

func (c *Conn) Authenticated() bool { return c.authenticated.Load() }

func (c *Conn) subscribe(topic string) {
	c.topicMu.Lock()
	c.topics[topic] = struct{}{}
	c.topicMu.Unlock()
}

// Send marshals v and queues it on the connection's independent send queue.
// A full queue means the client has stopped draining; the connection is
// dropped rather than blocking the hub.
func (c *Conn) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling outbound message", "conn", c.id, "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		slog.Warn("send queue full, dropping connection", "conn", c.id)
		c.close()
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
		c.hub.remove(c)
	})
}

// writePump drains the send queue onto the socket. One writer goroutine per
// connection keeps gorilla's single-writer requirement.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

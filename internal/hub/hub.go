// Package hub implements the realtime distribution server: it accepts
// client websocket connections, gates them behind a pairing-key exchange,
// dispatches inbound envelopes to topic handlers and broadcasts outbound
// state to every authenticated client.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"glancehub/internal/models"
)

const defaultAuthTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients are paired displays on the local network; origin checks do
	// not apply to non-browser websocket clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// VerifyKeyFunc checks a client-supplied pairing key.
type VerifyKeyFunc func(key string) bool

type Hub struct {
	registry    *Registry
	verifyKey   VerifyKeyFunc
	authTimeout time.Duration

	mu    sync.RWMutex
	conns map[string]*Conn
}

type Option func(*Hub)

func WithAuthTimeout(d time.Duration) Option {
	return func(h *Hub) { h.authTimeout = d }
}

func New(registry *Registry, verifyKey VerifyKeyFunc, opts ...Option) *Hub {
	h := &Hub{
		registry:    registry,
		verifyKey:   verifyKey,
		authTimeout: defaultAuthTimeout,
		conns:       make(map[string]*Conn),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleWS upgrades an HTTP request to a hub connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(sock, h)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	log.Printf("client connected: %s (%s)", c.id, r.RemoteAddr)

	go c.writePump()
	go h.readLoop(r.Context(), c)
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}

// ConnCount reports the number of connections, authenticated or not.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast pushes a topic payload to every authenticated connection.
// Delivery is broadcast-to-all by policy: client counts are a handful of
// paired devices, so per-topic subscriber tracking isn't worth carrying.
func (h *Hub) Broadcast(topic string, data any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.Authenticated() {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Send(models.Envelope{Type: topic, Data: mustMarshal(data)})
	}
}

// readLoop processes inbound messages for one connection. Everything is
// wrapped per-connection: malformed JSON, unknown topics and handler
// failures are logged and skipped so one misbehaving client cannot affect
// the others.
func (h *Hub) readLoop(ctx context.Context, c *Conn) {
	defer c.close()

	// Non-authenticated connections are limited to the auth exchange.
	c.sock.SetReadDeadline(time.Now().Add(h.authTimeout))

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("read error", "conn", c.id, "error", err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed JSON is dropped silently per connection.
			slog.Debug("dropping malformed message", "conn", c.id)
			continue
		}

		if !c.Authenticated() {
			if !h.handleAuth(c, env) {
				return
			}
			c.sock.SetReadDeadline(time.Time{})
			continue
		}

		h.dispatch(ctx, c, env)
	}
}

// handleAuth processes the authentication exchange. Returns false when the
// connection must be closed.
func (h *Hub) handleAuth(c *Conn, env models.Envelope) bool {
	if env.Type != "auth" {
		slog.Warn("message before authentication", "conn", c.id, "type", env.Type)
		return false
	}

	var key string
	if err := json.Unmarshal(env.Data, &key); err != nil || !h.verifyKey(key) {
		log.Printf("client failed authentication: %s", c.id)
		// The caller closes the connection right after rejection, so the
		// reply is written directly instead of through the send queue, which
		// would race the close. Nothing else writes to an unauthenticated
		// connection, so the write pump stays the sole queue consumer.
		reply := mustMarshal(models.Envelope{Type: "auth", Data: mustMarshal(map[string]bool{"ok": false})})
		c.sock.SetWriteDeadline(time.Now().Add(time.Second))
		if err := c.sock.WriteMessage(websocket.TextMessage, reply); err != nil {
			slog.Debug("auth rejection write", "conn", c.id, "error", err)
		}
		return false
	}

	c.authenticated.Store(true)
	log.Printf("client authenticated: %s", c.id)
	c.Send(models.Envelope{Type: "auth", Data: mustMarshal(map[string]bool{"ok": true})})
	return true
}

func (h *Hub) dispatch(ctx context.Context, c *Conn, env models.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("topic handler panicked", "topic", env.Type, "action", env.Action, "panic", rec)
		}
	}()

	th, ok := h.registry.Get(env.Type)
	if !ok {
		slog.Warn("unknown topic", "conn", c.id, "topic", env.Type)
		return
	}

	if env.Action == "" {
		c.subscribe(env.Type)
		if th.Snapshot == nil {
			return
		}
		data, err := th.Snapshot(ctx)
		if err != nil {
			slog.Warn("topic snapshot failed", "topic", env.Type, "error", err)
			return
		}
		c.Send(models.Envelope{Type: env.Type, Data: mustMarshal(data)})
		return
	}

	action, declared := th.Actions[env.Action]
	if !declared {
		slog.Warn("undeclared action", "conn", c.id, "topic", env.Type, "action", env.Action)
		return
	}
	if err := action(ctx, c, env.Data); err != nil {
		slog.Warn("action failed", "topic", env.Type, "action", env.Action, "error", err)
	}
}

// CloseAll closes every connection; used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling payload", "error", err)
		return json.RawMessage("null")
	}
	return data
}

// Package gateway serves the realtime WebSocket endpoint and translates inbound
// events into room registry calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/notebins/notebins/internal/rooms"
	"github.com/notebins/notebins/pkg/logger"
	"github.com/notebins/notebins/pkg/metrics"
)

const (
	DefaultMaxMessageBytes = 10 << 20
	DefaultSendBuffer      = 64
	DefaultPingInterval    = 54 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultWriteWait       = 10 * time.Second
)

// EventConnect is the event name hooks see when a connection is established.
const EventConnect = "connect"

var errInvalidPayload = errors.New("invalid payload")

type Config struct {
	MaxMessageBytes int64
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	// CheckOrigin decides whether a browser origin may connect; nil admits all.
	CheckOrigin func(origin string) bool
}

func (c Config) withDefaults() Config {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	return c
}

// Hook observes a connection before dispatch. It runs once with EventConnect and
// then before every inbound event; it cannot reject.
type Hook func(connID, event string)

// envelope is the wire form of inbound messages.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type handlerFunc func(c *client, data json.RawMessage) error

type Gateway struct {
	registry *rooms.Registry
	cfg      Config
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
	names    map[string]string
	log      *slog.Logger

	mu      sync.Mutex
	hooks   []Hook
	clients map[string]*client
	closed  bool
	wg      sync.WaitGroup

	upgraded func() // test hook, runs between upgrade and registration
}

func New(registry *rooms.Registry, cfg Config) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		registry: registry,
		cfg:      cfg,
		clients:  make(map[string]*client),
		log:      logger.With("component", "gateway"),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.CheckOrigin == nil || cfg.CheckOrigin(r.Header.Get("Origin"))
		},
	}
	g.handlers = map[string]handlerFunc{
		"join":   g.onJoin,
		"leave":  g.onLeave,
		"update": g.onUpdate,
		"ping":   g.onPing,
	}
	g.names = map[string]string{
		"join": "join", "note:join": "join",
		"leave": "leave", "note:leave": "leave",
		"update": "update", "note:update": "update",
		"ping": "ping",
	}
	return g
}

// Use adds a hook. Hooks added later apply to later connections and events.
func (g *Gateway) Use(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, h)
}

func (g *Gateway) runHooks(connID, event string) {
	g.mu.Lock()
	hooks := append([]Hook(nil), g.hooks...)
	g.mu.Unlock()
	for _, h := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					g.log.Error("hook panicked", "conn", connID, "event", event, "panic", fmt.Sprint(rec))
				}
			}()
			h(connID, event)
		}()
	}
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		g.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	if g.upgraded != nil {
		g.upgraded()
	}
	c := newClient(uuid.NewString(), conn, g.cfg.SendBuffer, g.log)

	// Shutdown may have run during the upgrade and will not see this client.
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		c.close()
		c.writePump(g.cfg.PingInterval, g.cfg.WriteWait)
		return
	}
	g.clients[c.id] = c
	g.mu.Unlock()
	g.log.Info("connected", "conn", c.id, "remote", r.RemoteAddr)
	metrics.RealtimeConnections.Inc()

	g.runHooks(c.id, EventConnect)
	g.registry.Connect(c)
	go c.writePump(g.cfg.PingInterval, g.cfg.WriteWait)

	g.readLoop(c)

	c.close()
	g.registry.Disconnect(c.id)
	g.mu.Lock()
	delete(g.clients, c.id)
	g.mu.Unlock()
	metrics.RealtimeConnections.Dec()
	g.log.Info("disconnected", "conn", c.id)
}

func (g *Gateway) readLoop(c *client) {
	c.conn.SetReadLimit(g.cfg.MaxMessageBytes)
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}
		extend()
		if kind != websocket.TextMessage {
			c.log.Debug("ignoring non-text frame")
			continue
		}
		g.handle(c, msg)
	}
}

// handle decodes one frame and dispatches it. Every failure is logged and dropped.
func (g *Gateway) handle(c *client, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
		c.log.Warn("malformed message dropped", "bytes", len(msg))
		return
	}
	g.runHooks(c.id, env.Event)

	name, ok := g.names[env.Event]
	if !ok {
		metrics.RealtimeEvents.WithLabelValues("unknown").Inc()
		c.log.Warn("unknown event dropped", "event", env.Event)
		return
	}
	metrics.RealtimeEvents.WithLabelValues(name).Inc()
	if err := g.handlers[name](c, env.Data); err != nil {
		c.log.Warn("event dropped", "event", env.Event, "err", err)
	}
}

func roomID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil || id == "" {
		return "", errInvalidPayload
	}
	return id, nil
}

func (g *Gateway) onJoin(c *client, data json.RawMessage) error {
	id, err := roomID(data)
	if err != nil {
		return err
	}
	g.registry.Join(c.id, id)
	return nil
}

func (g *Gateway) onLeave(c *client, data json.RawMessage) error {
	id, err := roomID(data)
	if err != nil {
		return err
	}
	g.registry.Leave(c.id, id)
	return nil
}

func (g *Gateway) onUpdate(c *client, data json.RawMessage) error {
	var u rooms.Update
	if err := json.Unmarshal(data, &u); err != nil || u.NoteID == "" {
		return errInvalidPayload
	}
	g.registry.Broadcast(c.id, u.NoteID, u.Content)
	c.log.Debug("update relayed", "note", u.NoteID)
	return nil
}

func (g *Gateway) onPing(c *client, _ json.RawMessage) error {
	c.Send(rooms.Event{Name: rooms.EventPong})
	return nil
}

// Shutdown refuses new connections, closes the open ones and waits for their
// handlers to return or ctx to end.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	for _, c := range g.clients {
		c.close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notebins/notebins/internal/rooms"
	"github.com/notebins/notebins/pkg/metrics"
)

// client is one WebSocket connection. The connection is written only by
// writePump; Send just enqueues.
type client struct {
	id   string
	conn *websocket.Conn
	send chan rooms.Event
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func newClient(id string, conn *websocket.Conn, buffer int, log *slog.Logger) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan rooms.Event, buffer),
		done: make(chan struct{}),
		log:  log.With("conn", id),
	}
}

func (c *client) ID() string { return c.id }

// Send enqueues ev without blocking. It reports false when the queue is full
// or the client is closing.
func (c *client) Send(ev rooms.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		metrics.RealtimeDropped.Inc()
		return false
	}
}

// close stops the writer; the writer then closes the connection, which ends the reader.
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("write failed", "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", "err", err)
				c.close()
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Conn is a single authenticated real-time session with a client.
//
// Outbound delivery goes through a buffered send queue drained by one write
// pump goroutine, so a slow or stalled client never blocks a broadcast to the
// others. The registry keeps the authoritative topic index for this
// connection's subscriptions.
type Conn struct {
	id          string
	userID      string
	connectedAt time.Time

	ws     *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newConn(id, userID string, wsc *websocket.Conn, sendBuffer int, cancel context.CancelFunc) *Conn {
	return &Conn{
		id:          id,
		userID:      userID,
		connectedAt: time.Now(),
		ws:          wsc,
		send:        make(chan []byte, sendBuffer),
		cancel:      cancel,
	}
}

// ID returns the connection identifier (derived from the token subject).
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated subject this connection belongs to.
func (c *Conn) UserID() string { return c.userID }

// ConnectedAt returns the handshake completion time.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// enqueue queues data for delivery, preserving FIFO order per connection.
// It reports false when the send buffer is full; the caller treats that as a
// slow consumer and drops the connection rather than blocking.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the transport. It exits when the
// connection context is canceled or a write fails, canceling the read loop
// either way.
func (c *Conn) writePump(ctx context.Context, writeTimeout time.Duration) {
	defer c.cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// close tears the transport down. Safe to call more than once.
func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.ws != nil {
			_ = c.ws.Close(code, reason)
		}
	})
}

package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a gorilla websocket connection to the hub Conn interface.
// gorilla allows only one concurrent writer per connection, so sends are
// serialized by a per-connection mutex.
type WSConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewWSConn wraps a websocket connection for hub subscription.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// Send writes one text message, bounded by the deadline.
func (c *WSConn) Send(payload []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying websocket.
func (c *WSConn) Close() error {
	return c.ws.Close()
}

package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn adapts a gorilla websocket connection to the Observer interface.
// Writes are serialized with a mutex because the hub may broadcast from
// multiple goroutines.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes one text frame with a bounded write deadline.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

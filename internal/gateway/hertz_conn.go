package gateway

import (
	"github.com/hertz-contrib/websocket"
)

// NewHertzWebSocketClientConn wraps a hertz-contrib/websocket connection
func NewHertzWebSocketClientConn(conn *websocket.Conn, opts ConnOptions) ClientConn {
	return newQueuedConn(conn, opts)
}

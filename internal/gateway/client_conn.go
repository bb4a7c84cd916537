package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
)

// ClientConn represents a WebSocket connection wrapper
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// frameConn is the method set shared by gorilla/websocket and hertz-contrib/websocket connections
type frameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ConnOptions tunes a queued connection
type ConnOptions struct {
	MaxMessageSize   int64
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	WriteChannelSize int
}

// queuedConn implements ClientConn with a single writer goroutine
type queuedConn struct {
	conn      frameConn
	opts      ConnOptions
	writeChan chan []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// NewWebSocketClientConn wraps a gorilla/websocket connection
func NewWebSocketClientConn(conn *websocket.Conn, opts ConnOptions) ClientConn {
	return newQueuedConn(conn, opts)
}

func newQueuedConn(conn frameConn, opts ConnOptions) *queuedConn {
	if opts.WriteChannelSize <= 0 {
		opts.WriteChannelSize = 256
	}
	c := &queuedConn{
		conn:      conn,
		opts:      opts,
		writeChan: make(chan []byte, opts.WriteChannelSize),
	}

	conn.SetReadLimit(opts.MaxMessageSize)

	// Pong extends the read deadline
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.writeLoop()

	return c
}

// writeLoop handles all writes to the connection (single writer pattern)
func (c *queuedConn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		if r := recover(); r != nil {
			log.Debug("writeLoop recovered from panic: %v", r)
		}
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.writeChan:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.Debug("write message error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug("ping error: %v", err)
				return
			}
		}
	}
}

func (c *queuedConn) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads a message from the connection
func (c *queuedConn) ReadMessage() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	_, message, err := c.conn.ReadMessage()
	return message, err
}

// WriteMessage queues a message to be written
func (c *queuedConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeChan <- data:
		return nil
	default:
		// Slow consumer
		return ErrWriteChannelFull
	}
}

// Close flushes queued frames, sends a close frame and releases the connection
func (c *queuedConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeChan)
		c.writeMu.Unlock()
	})
	return nil
}

package gateway

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/metrics"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Client represents an authenticated WebSocket connection
type Client struct {
	conn       ClientConn
	Identity   *entity.Identity
	UserId     string
	PlatformId int
	ConnId     string
	server     *WsServer
	closed     atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc

	// rooms is owned by RoomMap and only touched under its lock
	rooms map[string]struct{}
}

// NewClient creates a new client
func NewClient(conn ClientConn, identity *entity.Identity, platformId int, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		Identity:   identity,
		UserId:     identity.Id,
		PlatformId: platformId,
		ConnId:     connId,
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
		rooms:      make(map[string]struct{}),
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop processes frames in arrival order until the transport fails
func (c *Client) readLoop() {
	defer c.close()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
			return
		}

		if c.closed.Load() {
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "write reply failed, closing: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
			return
		}
	}
}

// handleMessage dispatches one frame. Only a failed write is returned; operation
// errors become a scoped error event.
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := Decode(message, &req); err != nil {
		return c.replyError(&req, errcode.ErrInvalidProtocol)
	}

	handler, ok := c.server.handlers[req.Event]
	if !ok {
		return c.replyError(&req, errcode.ErrUnknownEvent)
	}

	log.CtxDebug(c.ctx, "received event: event=%s, user_id=%s, conn_id=%s", req.Event, c.UserId, c.ConnId)

	event, data, err := c.invoke(handler, &req)
	if err != nil {
		metrics.EventsHandled.WithLabelValues(req.Event, metrics.ResultError).Inc()
		return c.replyError(&req, err)
	}
	metrics.EventsHandled.WithLabelValues(req.Event, metrics.ResultOK).Inc()
	if event == "" {
		return nil
	}
	return c.reply(&req, event, data)
}

// invoke runs handler, turning a panic into an internal error so the connection survives
func (c *Client) invoke(handler eventHandler, req *WSRequest) (event string, data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(c.ctx, "event handler panic: event=%s, user_id=%s, error=%v", req.Event, c.UserId, r)
			event, data, err = "", nil, errcode.ErrInternalServer.Wrap(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()
	return handler(c.ctx, c, req)
}

// reply sends a response to the caller only
func (c *Client) reply(req *WSRequest, event string, data interface{}) error {
	return c.writeResponse(&WSResponse{
		Event:       event,
		MsgIncr:     req.MsgIncr,
		OperationId: req.OperationId,
		Data:        data,
	})
}

// replyError sends a scoped error event. Internal details are never sent.
func (c *Client) replyError(req *WSRequest, err error) error {
	e := errcode.As(err)
	if e.Code == errcode.ErrInternalServer.Code {
		log.CtxError(c.ctx, "event failed: event=%s, user_id=%s, error=%v", req.Event, c.UserId, err)
		e = errcode.ErrInternalServer
	}
	return c.writeResponse(&WSResponse{
		Event:       EventError,
		MsgIncr:     req.MsgIncr,
		OperationId: req.OperationId,
		ErrCode:     e.Code,
		ErrMsg:      e.Msg,
		Data:        e.Msg,
	})
}

// writeResponse encodes resp and queues it on the connection
func (c *Client) writeResponse(resp *WSResponse) error {
	if c.closed.Load() {
		return nil
	}

	data, err := Encode(resp)
	if err != nil {
		log.CtxError(c.ctx, "encode response failed: event=%s, error=%v", resp.Event, err)
		return nil
	}

	return c.conn.WriteMessage(data)
}

// WriteFrame queues an already encoded frame
func (c *Client) WriteFrame(frame []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(frame)
}

// Close closes the client connection
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when the read loop ends
func (c *Client) close() {
	_ = c.Close()
	c.server.UnregisterClient(c)
}

package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/devcircle/pkg/response"
	"github.com/mbeoliero/kit/log"
)

// NewHertzUpgrader returns an upgrader that enforces the configured origins
func (s *WsServer) NewHertzUpgrader() *websocket.HertzUpgrader {
	allowedOrigins := s.cfg.Server.AllowedOrigins
	return &websocket.HertzUpgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(c *app.RequestContext) bool {
			return originAllowed(string(c.Request.Header.Peek("Origin")), allowedOrigins)
		},
	}
}

// HandleHertzConnection handles a WebSocket connection from Hertz using hertz-contrib/websocket
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	hs := &handshake{
		Token:         c.Query(QueryToken),
		Authorization: string(c.GetHeader(AuthorizationHeader)),
		SendId:        c.Query(QuerySendId),
		PlatformId:    c.Query(QueryPlatformId),
		RemoteAddr:    c.ClientIP(),
	}

	adm, rej := s.authenticate(ctx, hs)
	if rej != nil {
		c.JSON(rej.Status, response.Response{Code: rej.Err.Code, Msg: rej.Err.Msg})
		return
	}

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		client := s.admit(context.Background(), NewHertzWebSocketClientConn(conn, s.connOpts), adm)

		// Blocks until the connection ends; the hijacked conn is released afterwards
		client.readLoop()
	})
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
	}
}

package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/gateway"
	"github.com/mbeoliero/devcircle/internal/handler"
	"github.com/mbeoliero/devcircle/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers, verifier middleware.TokenVerifier, wsServer *gateway.WsServer) {
	// CORS middleware
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]interface{}{
			"status":       "ok",
			"online_users": wsServer.GetOnlineUserCount(),
			"online_conns": wsServer.GetOnlineConnCount(),
		})
	})

	h.GET("/metrics", adaptor.HertzHandler(promhttp.Handler()))

	auth := middleware.JWTAuth(verifier)

	// Auth routes
	authGroup := h.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/logout", auth, handlers.Auth.Logout)
	}

	// User routes (auth required)
	userGroup := h.Group("/user", auth)
	{
		userGroup.GET("/info", handlers.User.GetUserInfo)
		userGroup.GET("/info/:user_id", handlers.User.GetUserInfoById)
		userGroup.GET("/online", handlers.User.GetOnlineStatus)
	}

	// Conversation routes (auth required)
	convGroup := h.Group("/conversation", auth)
	{
		convGroup.GET("/list", handlers.Conversation.GetConversationList)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.POST("/direct", handlers.Conversation.GetOrCreateDirect)
		convGroup.POST("/mark_read", handlers.Conversation.MarkRead)
		convGroup.GET("/unread_count", handlers.Conversation.GetUnreadCount)
	}

	// Message routes (auth required)
	msgGroup := h.Group("/msg", auth)
	{
		msgGroup.POST("/send", handlers.Message.SendMessage)
		msgGroup.GET("/list", handlers.Message.ListMessages)
	}

	// Notification routes (auth required)
	notifGroup := h.Group("/notification", auth)
	{
		notifGroup.GET("/list", handlers.Notification.List)
		notifGroup.GET("/unread_count", handlers.Notification.UnreadCount)
		notifGroup.POST("/emit", handlers.Notification.Emit)
		notifGroup.POST("/delete", handlers.Notification.Delete)
		notifGroup.POST("/mark_read", handlers.Notification.MarkRead)
		notifGroup.POST("/mark_all_read", handlers.Notification.MarkAllRead)
	}

	// WebSocket route; the gate authenticates from the query or the Authorization header
	upgrader := wsServer.NewHertzUpgrader()
	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
	Notification *handler.NotificationHandler
}

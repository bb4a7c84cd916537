package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/gateway"
	"github.com/mbeoliero/devcircle/internal/handler"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/internal/router"
	"github.com/mbeoliero/devcircle/internal/service"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.CtxInfo(ctx, "config loaded: mode=%s, driver=%s", cfg.Server.Mode, cfg.Database.Driver)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	gen, err := idgen.NewSonyflakeGenerator(cfg.Server.MachineId)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}
	idgen.SetDefaultGenerator(gen)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		return fmt.Errorf("init repositories: %w", err)
	}
	defer repos.Close()

	if err := repos.CheckConnection(ctx); err != nil {
		return fmt.Errorf("store connection check: %w", err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	authService := service.NewAuthService(repos.User, cfg, repos.Redis)
	userService := service.NewUserService(repos)
	convService := service.NewConversationService(repos)
	msgService := service.NewMessageService(repos, convService, cfg.Message)
	notifService := service.NewNotificationService(repos)

	// Initialize WebSocket server; it is the room pusher of every service
	wsServer := gateway.NewWsServer(cfg, authService, convService, msgService, notifService, repos.Presence)
	msgService.SetPusher(wsServer)
	notifService.SetPusher(wsServer)

	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket server started")

	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService, msgService),
		Notification: handler.NewNotificationHandler(notifService),
	}

	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
		server.WithExitWaitTime(shutdownTimeout),
	)
	router.SetupRouter(h, cfg, handlers, authService, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	wsServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
	return nil
}

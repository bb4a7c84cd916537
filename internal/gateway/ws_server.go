package gateway

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/metrics"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/internal/service"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/idgen"
	"github.com/mbeoliero/devcircle/pkg/response"
	"github.com/mbeoliero/kit/log"
	"github.com/sourcegraph/conc"
)

// eventHandler serves one client event. An empty event means no reply to the caller.
type eventHandler func(ctx context.Context, c *Client, req *WSRequest) (event string, data interface{}, err error)

// WsServer is the WebSocket server
type WsServer struct {
	cfg           *config.Config
	upgrader      *websocket.Upgrader
	authService   *service.AuthService
	convService   *service.ConversationService
	msgService    *service.MessageService
	notifService  *service.NotificationService
	rooms         *RoomMap
	typing        *TypingTracker
	handlers      map[string]eventHandler
	pushShards    []chan *PushTask
	onlineConnNum atomic.Int64
	maxConnNum    int64
	connOpts      ConnOptions

	wg     conc.WaitGroup
	cancel context.CancelFunc
}

// PushTask is one encoded frame bound for every member of a room
type PushTask struct {
	Room          string
	Event         string
	Frame         []byte
	ExcludeConnId string
}

// NewWsServer creates a new WebSocket server
func NewWsServer(
	cfg *config.Config,
	authService *service.AuthService,
	convService *service.ConversationService,
	msgService *service.MessageService,
	notifService *service.NotificationService,
	presence *repository.PresenceRepo,
) *WsServer {
	wsCfg := cfg.WebSocket
	workerNum := wsCfg.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	chanSize := wsCfg.PushChannelSize / workerNum
	if chanSize <= 0 {
		chanSize = 64
	}

	s := &WsServer{
		cfg:          cfg,
		authService:  authService,
		convService:  convService,
		msgService:   msgService,
		notifService: notifService,
		rooms:        NewRoomMap(presence, wsCfg.OnlineTTL),
		typing:       NewTypingTracker(),
		pushShards:   make([]chan *PushTask, workerNum),
		maxConnNum:   wsCfg.MaxConnNum,
		connOpts: ConnOptions{
			MaxMessageSize:   wsCfg.MaxMessageSize,
			WriteWait:        wsCfg.WriteWait,
			PongWait:         wsCfg.PongWait,
			PingPeriod:       wsCfg.PingPeriod,
			WriteChannelSize: wsCfg.WriteChannelSize,
		},
	}
	for i := range s.pushShards {
		s.pushShards[i] = make(chan *PushTask, chanSize)
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	s.upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}

	s.handlers = map[string]eventHandler{
		EventGetOrCreateConversation: s.handleGetOrCreateConversation,
		EventJoinConversation:        s.handleJoinConversation,
		EventLeaveConversation:       s.handleLeaveConversation,
		EventSendMessage:             s.handleSendMessage,
		EventTyping:                  s.handleTyping,
		EventMarkNotificationRead:    s.handleMarkNotificationRead,
		EventMarkConversationRead:    s.handleMarkConversationRead,
	}

	return s
}

// Run starts the presence refresher and the push workers
func (s *WsServer) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Go(func() { s.eventLoop(ctx) })
	for _, shard := range s.pushShards {
		s.wg.Go(func() { s.pushLoop(ctx, shard) })
	}
	log.Info("started %d push workers", len(s.pushShards))
}

// Shutdown closes every connection and stops the workers
func (s *WsServer) Shutdown() {
	for _, client := range s.rooms.AllClients() {
		_ = client.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info("websocket server stopped")
}

// eventLoop keeps the presence keys of local users alive
func (s *WsServer) eventLoop(ctx context.Context) {
	interval := s.cfg.WebSocket.OnlineTTL / 3
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rooms.RefreshOnlineStatus(ctx)
		}
	}
}

// pushLoop drains one shard. All tasks of a room land on the same shard, so room
// members observe frames in enqueue order.
func (s *WsServer) pushLoop(ctx context.Context, shard chan *PushTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-shard:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask writes one frame to every member of the room. A failed member does not stop the others.
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	for _, client := range s.rooms.Members(task.Room) {
		if task.ExcludeConnId != "" && client.ConnId == task.ExcludeConnId {
			continue
		}
		if err := client.WriteFrame(task.Frame); err != nil {
			metrics.PushFailures.WithLabelValues(task.Event).Inc()
			log.CtxDebug(ctx, "push to client failed: room=%s, event=%s, user_id=%s, conn_id=%s, error=%v",
				task.Room, task.Event, client.UserId, client.ConnId, err)
		}
	}
}

// PushToRoom encodes an event once and queues it for every member of room
func (s *WsServer) PushToRoom(ctx context.Context, room, event string, data interface{}) error {
	return s.pushToRoom(ctx, room, event, data, "")
}

func (s *WsServer) pushToRoom(ctx context.Context, room, event string, data interface{}, excludeConnId string) error {
	frame, err := Encode(&WSResponse{Event: event, Data: data})
	if err != nil {
		return err
	}
	return s.enqueue(&PushTask{
		Room:          room,
		Event:         event,
		Frame:         frame,
		ExcludeConnId: excludeConnId,
	})
}

func (s *WsServer) enqueue(task *PushTask) error {
	shard := s.pushShards[xxhash.Sum64String(task.Room)%uint64(len(s.pushShards))]
	select {
	case shard <- task:
		return nil
	default:
		metrics.PushDropped.WithLabelValues(task.Event).Inc()
		log.Warn("push channel full, frame dropped: room=%s, event=%s", task.Room, task.Event)
		return ErrPushQueueFull
	}
}

// registerClient admits a client, joins its user room and sends the connected frame
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	firstConn := s.rooms.Register(ctx, client)
	conns := s.onlineConnNum.Add(1)
	s.updateGauges()

	log.CtxInfo(ctx, "client registered: user_id=%s, platform_id=%d, conn_id=%s, first_conn=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, firstConn, s.rooms.GetOnlineUserCount(), conns)

	if err := client.writeResponse(&WSResponse{
		Event: EventConnected,
		Data:  &ConnectedEvent{ConnId: client.ConnId, Identity: client.Identity},
	}); err != nil {
		log.CtxWarn(ctx, "send connected frame failed: conn_id=%s, error=%v", client.ConnId, err)
	}
}

// unregisterClient drops a client from every room and ends its typing state
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	for _, conversationId := range s.typing.ClearConn(client.ConnId) {
		s.broadcastTyping(ctx, client, conversationId, false)
	}

	lastConn := s.rooms.Unregister(ctx, client)
	conns := s.onlineConnNum.Add(-1)
	s.updateGauges()

	log.CtxInfo(ctx, "client unregistered: user_id=%s, platform_id=%d, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, lastConn, s.rooms.GetOnlineUserCount(), conns)
}

// UnregisterClient is called once when a client's read loop ends
func (s *WsServer) UnregisterClient(client *Client) {
	s.unregisterClient(context.Background(), client)
}

func (s *WsServer) updateGauges() {
	metrics.OnlineConnections.Set(float64(s.onlineConnNum.Load()))
	metrics.OnlineUsers.Set(float64(s.rooms.GetOnlineUserCount()))
}

// admit wraps an upgraded connection into a registered client
func (s *WsServer) admit(ctx context.Context, conn ClientConn, adm *admission) *Client {
	client := NewClient(conn, adm.Identity, adm.PlatformId, idgen.NewConnId(), s)
	s.registerClient(ctx, client)
	return client
}

// HandleConnection serves the upgrade on a net/http server
func (s *WsServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	hs := &handshake{
		Token:         query.Get(QueryToken),
		Authorization: r.Header.Get(AuthorizationHeader),
		SendId:        query.Get(QuerySendId),
		PlatformId:    query.Get(QueryPlatformId),
		RemoteAddr:    r.RemoteAddr,
	}

	adm, rej := s.authenticate(ctx, hs)
	if rej != nil {
		body, _ := sonic.Marshal(&response.Response{Code: rej.Err.Code, Msg: rej.Err.Msg})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rej.Status)
		_, _ = w.Write(body)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	client := s.admit(context.Background(), NewWebSocketClientConn(conn, s.connOpts), adm)
	client.Start()
}

// Rooms exposes the room table
func (s *WsServer) Rooms() *RoomMap {
	return s.rooms
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return int64(s.rooms.GetOnlineUserCount())
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// broadcastTyping tells every other connection in a conversation room about a typing change
func (s *WsServer) broadcastTyping(ctx context.Context, client *Client, conversationId string, isTyping bool) {
	username := ""
	if client.Identity != nil {
		username = client.Identity.Username
	}
	err := s.pushToRoom(ctx, constant.ConversationRoom(conversationId), EventUserTyping, &UserTypingEvent{
		ConversationId: conversationId,
		UserId:         client.UserId,
		Username:       username,
		IsTyping:       isTyping,
	}, client.ConnId)
	if err != nil {
		log.CtxWarn(ctx, "broadcast typing failed: conversation_id=%s, user_id=%s, error=%v", conversationId, client.UserId, err)
	}
}

var _ service.EventPusher = (*WsServer)(nil)

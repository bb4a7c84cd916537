package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/internal/service"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/response"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

const waitTimeout = 3 * time.Second

// fakeConn is an in-memory ClientConn
type fakeConn struct {
	in       chan []byte
	out      chan []byte
	done     chan struct{}
	once     sync.Once
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-f.in:
		return msg, nil
	case <-f.done:
		return nil, ErrConnClosed
	}
}

func (f *fakeConn) WriteMessage(data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	select {
	case f.out <- data:
		return nil
	default:
		return ErrWriteChannelFull
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

// next returns the next frame written to the connection
func (f *fakeConn) next(t *testing.T) *testFrame {
	t.Helper()
	select {
	case data := <-f.out:
		var frame testFrame
		require.NoError(t, Decode(data, &frame))
		return &frame
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

// testFrame is WSResponse with the payload kept raw
type testFrame struct {
	Event       string          `json:"event"`
	MsgIncr     string          `json:"msg_incr"`
	OperationId string          `json:"operation_id"`
	ErrCode     int             `json:"err_code"`
	ErrMsg      string          `json:"err_msg"`
	Data        json.RawMessage `json:"data"`
}

func (f *testFrame) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, Decode(f.Data, v))
}

type testEnv struct {
	cfg    *config.Config
	repos  *repository.Repositories
	mr     *miniredis.Miniredis
	auth   *service.AuthService
	conv   *service.ConversationService
	msg    *service.MessageService
	notif  *service.NotificationService
	server *WsServer
	http   *httptest.Server
}

func newTestEnv(t *testing.T, tweak ...func(cfg *config.Config)) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.OpenSQLite(fmt.Sprintf("file:gw_%s?mode=memory&cache=shared", name), logger.Silent)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repos := repository.NewRepositoriesWithClients(db, rdb)
	require.NoError(t, repos.AutoMigrate())
	t.Cleanup(func() { _ = repos.Close() })

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.WebSocket.PushWorkerNum = 4
	cfg.SetDefaults()
	for _, fn := range tweak {
		fn(cfg)
	}

	authSvc := service.NewAuthService(repos.User, cfg, rdb)
	convSvc := service.NewConversationService(repos)
	msgSvc := service.NewMessageService(repos, convSvc, cfg.Message)
	notifSvc := service.NewNotificationService(repos)

	server := NewWsServer(cfg, authSvc, convSvc, msgSvc, notifSvc, repository.NewPresenceRepo(rdb))
	msgSvc.SetPusher(server)
	notifSvc.SetPusher(server)
	server.Run(context.Background())

	ts := httptest.NewServer(http.HandlerFunc(server.HandleConnection))
	t.Cleanup(func() {
		server.Shutdown()
		ts.Close()
	})

	return &testEnv{
		cfg:    cfg,
		repos:  repos,
		mr:     mr,
		auth:   authSvc,
		conv:   convSvc,
		msg:    msgSvc,
		notif:  notifSvc,
		server: server,
		http:   ts,
	}
}

// registerAndLogin creates a user and returns its id and a token for platformId
func (e *testEnv) registerAndLogin(t *testing.T, username string, platformId int) (string, string) {
	t.Helper()
	ctx := context.Background()

	user, err := e.repos.User.GetByUsername(ctx, username)
	if err != nil {
		info, err := e.auth.Register(ctx, &service.RegisterRequest{
			Username: username,
			Email:    username + "@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		user = &entity.User{Id: info.Id}
	}

	resp, err := e.auth.Login(ctx, &service.LoginRequest{Username: username, Password: "password123", PlatformId: platformId})
	require.NoError(t, err)
	return user.Id, resp.Token
}

func (e *testEnv) wsURL(query string) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     strings.TrimPrefix(e.http.URL, "http://"),
		Path:     "/ws",
		RawQuery: query,
	}
	return u.String()
}

// WSClient is a WebSocket test client
type WSClient struct {
	conn    *websocket.Conn
	frames  chan *testFrame
	done    chan struct{}
	pending []*testFrame
	mu      sync.Mutex
}

// dial connects with token and waits for the connected frame
func (e *testEnv) dial(t *testing.T, token string) (*WSClient, *ConnectedEvent) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(QueryToken+"="+url.QueryEscape(token)), nil)
	require.NoError(t, err)

	client := &WSClient{
		conn:   conn,
		frames: make(chan *testFrame, 256),
		done:   make(chan struct{}),
	}
	go client.readLoop()
	t.Cleanup(func() { _ = client.Close() })

	var connected ConnectedEvent
	client.expect(t, EventConnected).decode(t, &connected)
	return client, &connected
}

func (c *WSClient) readLoop() {
	defer close(c.done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame testFrame
		if err := Decode(message, &frame); err != nil {
			continue
		}
		c.frames <- &frame
	}
}

// Send sends a request envelope
func (c *WSClient) Send(t *testing.T, event, msgIncr string, data interface{}) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := Encode(data)
	require.NoError(t, err)
	frame, err := Encode(&WSRequest{Event: event, MsgIncr: msgIncr, Data: raw})
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

// SendRaw writes an arbitrary text frame
func (c *WSClient) SendRaw(t *testing.T, frame string) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect returns the first frame with the given event, keeping others for later calls
func (c *WSClient) expect(t *testing.T, event string) *testFrame {
	t.Helper()
	for i, frame := range c.pending {
		if frame.Event == event {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return frame
		}
	}

	deadline := time.After(waitTimeout)
	for {
		select {
		case frame := <-c.frames:
			if frame.Event == event {
				return frame
			}
			c.pending = append(c.pending, frame)
		case <-deadline:
			t.Fatalf("timeout waiting for %s, pending=%d", event, len(c.pending))
			return nil
		case <-c.done:
			select {
			case frame := <-c.frames:
				if frame.Event == event {
					return frame
				}
				c.pending = append(c.pending, frame)
			default:
				t.Fatalf("connection closed while waiting for %s", event)
				return nil
			}
		}
	}
}

// expectNone asserts no frame with event arrives within d
func (c *WSClient) expectNone(t *testing.T, event string, d time.Duration) {
	t.Helper()
	for _, frame := range c.pending {
		require.NotEqual(t, event, frame.Event)
	}

	deadline := time.After(d)
	for {
		select {
		case frame := <-c.frames:
			require.NotEqual(t, event, frame.Event, "unexpected %s frame", event)
			c.pending = append(c.pending, frame)
		case <-deadline:
			return
		}
	}
}

// Close closes the WebSocket connection
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// dialStatus attempts a handshake and returns the HTTP status and business code of the refusal
func (e *testEnv) dialStatus(t *testing.T, query string, header http.Header) (int, int) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(query), header)
	if err == nil {
		_ = conn.Close()
		return http.StatusSwitchingProtocols, 0
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	var body response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Code
}

// attachFake registers a fake connection for userId directly, bypassing the handshake
func (e *testEnv) attachFake(t *testing.T, userId string) (*Client, *fakeConn) {
	t.Helper()
	identity, err := e.auth.LookupIdentity(context.Background(), userId)
	require.NoError(t, err)

	conn := newFakeConn()
	client := e.server.admit(context.Background(), conn, &admission{Identity: identity, PlatformId: constant.PlatformIdWeb})
	require.Equal(t, EventConnected, conn.next(t).Event)
	client.Start()
	t.Cleanup(func() { _ = conn.Close() })
	return client, conn
}

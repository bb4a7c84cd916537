package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type pushedEvent struct {
	Room  string
	Event string
	Data  interface{}
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushedEvent
	err    error
}

func (p *recordingPusher) PushToRoom(_ context.Context, room, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, pushedEvent{Room: room, Event: event, Data: data})
	return nil
}

func (p *recordingPusher) byEvent(event string) []pushedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	cfg    *config.Config
	repos  *repository.Repositories
	mr     *miniredis.Miniredis
	pusher *recordingPusher
	auth   *AuthService
	user   *UserService
	conv   *ConversationService
	msg    *MessageService
	notif  *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.OpenSQLite(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name), logger.Silent)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repos := repository.NewRepositoriesWithClients(db, rdb)
	require.NoError(t, repos.AutoMigrate())
	t.Cleanup(func() { _ = repos.Close() })

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.SetDefaults()
	cfg.Message.MaxContentLength = 20

	pusher := &recordingPusher{}
	convSvc := NewConversationService(repos)
	msgSvc := NewMessageService(repos, convSvc, cfg.Message)
	msgSvc.SetPusher(pusher)
	notifSvc := NewNotificationService(repos)
	notifSvc.SetPusher(pusher)

	return &testEnv{
		cfg:    cfg,
		repos:  repos,
		mr:     mr,
		pusher: pusher,
		auth:   NewAuthService(repos.User, cfg, rdb),
		user:   NewUserService(repos),
		conv:   convSvc,
		msg:    msgSvc,
		notif:  notifSvc,
	}
}

func (e *testEnv) seedUsers(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, e.repos.User.Create(context.Background(), &entity.User{
			Id:       id,
			Username: "name_" + id,
			Email:    id + "@example.com",
			Role:     "user",
		}))
	}
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.repos.DB.Model(model).Count(&n).Error)
	return n
}

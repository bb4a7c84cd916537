package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomMap(t *testing.T) (*RoomMap, *repository.PresenceRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	presence := repository.NewPresenceRepo(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewRoomMap(presence, time.Minute), presence, mr
}

func newTestClient(userId, connId string) *Client {
	return NewClient(newFakeConn(), &entity.Identity{Id: userId, Username: "name_" + userId}, constant.PlatformIdWeb, connId, nil)
}

func TestRoomMap_RegisterJoinsUserRoom(t *testing.T) {
	m, presence, _ := newRoomMap(t)
	ctx := context.Background()

	web := newTestClient("alice", "conn-1")
	ios := newTestClient("alice", "conn-2")

	assert.True(t, m.Register(ctx, web))
	assert.False(t, m.Register(ctx, ios))

	assert.ElementsMatch(t, []string{constant.UserRoom("alice")}, m.Rooms(web))
	assert.Len(t, m.Members(constant.UserRoom("alice")), 2)
	assert.Equal(t, 1, m.GetOnlineUserCount())
	assert.Equal(t, 2, m.GetOnlineConnCount())

	online, err := presence.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	assert.False(t, m.Unregister(ctx, web))
	online, err = presence.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	assert.True(t, m.Unregister(ctx, ios))
	online, err = presence.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
	assert.Empty(t, m.Members(constant.UserRoom("alice")))

	// unknown client
	assert.False(t, m.Unregister(ctx, ios))
}

func TestRoomMap_JoinLeave(t *testing.T) {
	m, _, _ := newRoomMap(t)
	ctx := context.Background()
	room := constant.ConversationRoom("c1")

	alice := newTestClient("alice", "conn-1")
	bob := newTestClient("bob", "conn-2")
	m.Register(ctx, alice)
	m.Register(ctx, bob)

	assert.True(t, m.Join(alice, room))
	assert.False(t, m.Join(alice, room), "joining twice keeps one membership")
	assert.True(t, m.Join(bob, room))
	assert.Len(t, m.Members(room), 2)
	assert.True(t, m.IsMember(alice, room))

	m.Leave(alice, room)
	m.Leave(alice, room)
	m.Leave(alice, constant.ConversationRoom("never-joined"))
	assert.False(t, m.IsMember(alice, room))
	assert.Len(t, m.Members(room), 1)

	m.Unregister(ctx, bob)
	assert.Empty(t, m.Members(room))
	assert.Empty(t, m.Rooms(bob))
}

func TestRoomMap_RefreshOnlineStatus(t *testing.T) {
	m, presence, mr := newRoomMap(t)
	ctx := context.Background()

	m.Register(ctx, newTestClient("alice", "conn-1"))

	mr.FastForward(50 * time.Second)
	m.RefreshOnlineStatus(ctx)
	mr.FastForward(50 * time.Second)

	online, err := presence.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)
}

package service

import (
	"context"
	"sync"
	"testing"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateDirect_Sequential(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()

	first, err := env.conv.GetOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "bob", first.OtherUser.Id)
	assert.Equal(t, "name_bob", first.OtherUser.Username)
	assert.Len(t, first.Conversation.Participants, 2)

	second, err := env.conv.GetOrCreateDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ConversationId, second.Conversation.ConversationId)
	assert.Equal(t, "alice", second.OtherUser.Id)

	assert.EqualValues(t, 1, env.count(t, &entity.Conversation{}))
	assert.EqualValues(t, 2, env.count(t, &entity.ConversationParticipant{}))
}

func TestGetOrCreateDirect_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()

	const callers = 16
	var (
		mu  sync.Mutex
		ids = make(map[string]int)
		wg  conc.WaitGroup
	)
	for i := 0; i < callers; i++ {
		caller, other := "alice", "bob"
		if i%2 == 1 {
			caller, other = other, caller
		}
		wg.Go(func() {
			res, err := env.conv.GetOrCreateDirect(ctx, caller, other)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[res.Conversation.ConversationId]++
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.EqualValues(t, 1, env.count(t, &entity.Conversation{}))
	assert.EqualValues(t, 2, env.count(t, &entity.ConversationParticipant{}))
}

func TestGetOrCreateDirect_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice")
	ctx := context.Background()

	_, err := env.conv.GetOrCreateDirect(ctx, "alice", "alice")
	assert.ErrorIs(t, err, errcode.ErrSelfConversation)

	_, err = env.conv.GetOrCreateDirect(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, errcode.ErrUserNotFound)

	_, err = env.conv.GetOrCreateDirect(ctx, "alice", "")
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)

	assert.EqualValues(t, 0, env.count(t, &entity.Conversation{}))
}

func TestConversationQueries(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob", "carol")
	ctx := context.Background()

	ab, err := env.conv.GetOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	ac, err := env.conv.GetOrCreateDirect(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = env.msg.SendMessage(ctx, "bob", &SendMessageRequest{
		ConversationId: ab.Conversation.ConversationId,
		Content:        "hi alice",
	})
	require.NoError(t, err)
	// Pin the older conversation so ordering does not depend on clock resolution
	require.NoError(t, env.repos.DB.Model(&entity.Conversation{}).
		Where("id = ?", ac.Conversation.ConversationId).
		Update("updated_at", 1).Error)

	list, err := env.conv.GetUserConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ab.Conversation.ConversationId, list[0].ConversationId)
	assert.EqualValues(t, 1, list[0].UnreadCount)
	assert.EqualValues(t, 1, list[0].MaxSeq)
	assert.Equal(t, ac.Conversation.ConversationId, list[1].ConversationId)
	assert.EqualValues(t, 0, list[1].UnreadCount)

	info, err := env.conv.GetConversation(ctx, "bob", ab.Conversation.ConversationId)
	require.NoError(t, err)
	assert.EqualValues(t, 0, info.UnreadCount)

	_, err = env.conv.GetConversation(ctx, "carol", ab.Conversation.ConversationId)
	assert.ErrorIs(t, err, errcode.ErrNotParticipant)

	_, err = env.conv.GetConversation(ctx, "alice", "missing")
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)

	unread, err := env.conv.GetUnreadCount(ctx, "alice", ab.Conversation.ConversationId)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	ok, err := env.conv.IsParticipant(ctx, ac.Conversation.ConversationId, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

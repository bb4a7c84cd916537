package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/metrics"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDirect(t *testing.T, env *testEnv, a, b string) string {
	t.Helper()
	res, err := env.conv.GetOrCreateDirect(context.Background(), a, b)
	require.NoError(t, err)
	return res.Conversation.ConversationId
}

func TestSendMessage_FanOut(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	before, err := env.conv.GetConversation(ctx, "alice", convId)
	require.NoError(t, err)

	info, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{
		ConversationId: convId,
		Content:        "  hello  ",
		ReceiverId:     "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", info.Content)
	assert.EqualValues(t, 1, info.Seq)
	assert.Nil(t, info.ReadAt)
	require.NotNil(t, info.Sender)
	assert.Equal(t, "name_alice", info.Sender.Username)

	roomEvents := env.pusher.byEvent(EventNewMessage)
	require.Len(t, roomEvents, 1)
	assert.Equal(t, constant.ConversationRoom(convId), roomEvents[0].Room)

	direct := env.pusher.byEvent(EventNewDirectMessage)
	require.Len(t, direct, 1)
	assert.Equal(t, constant.UserRoom("bob"), direct[0].Room)
	assert.Equal(t, info, direct[0].Data)

	after, err := env.conv.GetConversation(ctx, "alice", convId)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.UpdatedAt, before.UpdatedAt)
	assert.EqualValues(t, 1, after.MaxSeq)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob", "mallory")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	cases := []struct {
		name   string
		sender string
		req    *SendMessageRequest
		want   *errcode.Error
	}{
		{"non participant", "mallory", &SendMessageRequest{ConversationId: convId, Content: "hi"}, errcode.ErrNotParticipant},
		{"whitespace content", "alice", &SendMessageRequest{ConversationId: convId, Content: " \n\t "}, errcode.ErrEmptyContent},
		{"too long", "alice", &SendMessageRequest{ConversationId: convId, Content: "this message is definitely too long"}, errcode.ErrContentTooLong},
		{"unknown conversation", "alice", &SendMessageRequest{ConversationId: "nope", Content: "hi"}, errcode.ErrConvNotFound},
		{"receiver outside conversation", "alice", &SendMessageRequest{ConversationId: convId, Content: "hi", ReceiverId: "mallory"}, errcode.ErrInvalidReceiver},
		{"receiver is sender", "alice", &SendMessageRequest{ConversationId: convId, Content: "hi", ReceiverId: "alice"}, errcode.ErrInvalidReceiver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.msg.SendMessage(ctx, tc.sender, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.EqualValues(t, 0, env.count(t, &entity.Message{}))
	assert.Empty(t, env.pusher.byEvent(EventNewMessage))
}

func TestSendMessage_ClientMsgIdIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	sentBefore := testutil.ToFloat64(metrics.MessagesSent)
	req := &SendMessageRequest{ConversationId: convId, Content: "once", ClientMsgId: "c-1"}
	first, err := env.msg.SendMessage(ctx, "alice", req)
	require.NoError(t, err)
	second, err := env.msg.SendMessage(ctx, "alice", req)
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.EqualValues(t, 1, env.count(t, &entity.Message{}))
	assert.Len(t, env.pusher.byEvent(EventNewMessage), 1)
	assert.Equal(t, sentBefore+1, testutil.ToFloat64(metrics.MessagesSent))
}

func TestSendMessage_ClientMsgIdScopedToConversation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob", "carol")
	ctx := context.Background()
	bobConv := setupDirect(t, env, "alice", "bob")
	carolConv := setupDirect(t, env, "alice", "carol")

	toBob, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{ConversationId: bobConv, Content: "to bob", ClientMsgId: "1"})
	require.NoError(t, err)
	toCarol, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{ConversationId: carolConv, Content: "to carol", ClientMsgId: "1"})
	require.NoError(t, err)

	assert.NotEqual(t, toBob.Id, toCarol.Id)
	assert.Equal(t, carolConv, toCarol.ConversationId)
	assert.Equal(t, "to carol", toCarol.Content)

	var stored int64
	require.NoError(t, env.repos.DB.Model(&entity.Message{}).Where("conversation_id = ?", carolConv).Count(&stored).Error)
	assert.EqualValues(t, 1, stored)

	pushes := env.pusher.byEvent(EventNewMessage)
	require.Len(t, pushes, 2)
	assert.Equal(t, constant.ConversationRoom(carolConv), pushes[1].Room)
	assert.Equal(t, "to carol", pushes[1].Data.(*entity.MessageInfo).Content)
}

func TestSendMessage_PushFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	env.pusher.err = errors.New("queue full")
	_, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{ConversationId: convId, Content: "hello"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.count(t, &entity.Message{}))
}

func TestMarkConversationRead_Monotonic(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob", "mallory")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	for _, content := range []string{"one", "two"} {
		_, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{ConversationId: convId, Content: content})
		require.NoError(t, err)
	}
	_, err := env.msg.SendMessage(ctx, "bob", &SendMessageRequest{ConversationId: convId, Content: "three"})
	require.NoError(t, err)

	receipt, err := env.msg.MarkConversationRead(ctx, "bob", convId)
	require.NoError(t, err)
	assert.EqualValues(t, 2, receipt.Count)

	history, err := env.msg.ListMessages(ctx, "bob", convId, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	readAt := map[int64]*int64{}
	for _, m := range history {
		readAt[m.Id] = m.ReadAt
		if m.SenderId == "alice" {
			require.NotNil(t, m.ReadAt)
		} else {
			assert.Nil(t, m.ReadAt)
		}
	}

	again, err := env.msg.MarkConversationRead(ctx, "bob", convId)
	require.NoError(t, err)
	assert.EqualValues(t, 0, again.Count)

	history, err = env.msg.ListMessages(ctx, "bob", convId, 10, 0)
	require.NoError(t, err)
	for _, m := range history {
		assert.Equal(t, readAt[m.Id], m.ReadAt)
	}

	reads := env.pusher.byEvent(EventMessagesRead)
	require.Len(t, reads, 1)
	assert.Equal(t, constant.ConversationRoom(convId), reads[0].Room)

	_, err = env.msg.MarkConversationRead(ctx, "mallory", convId)
	assert.ErrorIs(t, err, errcode.ErrNotParticipant)
}

func TestListMessages_Paging(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice", "bob")
	ctx := context.Background()
	convId := setupDirect(t, env, "alice", "bob")

	for _, content := range []string{"m1", "m2", "m3", "m4", "m5"} {
		_, err := env.msg.SendMessage(ctx, "alice", &SendMessageRequest{ConversationId: convId, Content: content})
		require.NoError(t, err)
	}

	page, err := env.msg.ListMessages(ctx, "bob", convId, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m4", page[0].Content)
	assert.Equal(t, "m5", page[1].Content)
	assert.Equal(t, "name_alice", page[0].Sender.Username)

	page, err = env.msg.ListMessages(ctx, "bob", convId, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].Content)

	_, err = env.msg.ListMessages(ctx, "bob", "missing", 2, 0)
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)
}

package gateway

import (
	"context"

	"github.com/mbeoliero/devcircle/internal/service"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
)

// handleGetOrCreateConversation resolves the direct conversation and joins the caller to its room
func (s *WsServer) handleGetOrCreateConversation(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload GetOrCreateConversationReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	result, err := s.convService.GetOrCreateDirect(ctx, c.UserId, payload.OtherUserId)
	if err != nil {
		return "", nil, err
	}

	conversationId := result.Conversation.ConversationId
	s.rooms.Join(c, constant.ConversationRoom(conversationId))

	return EventConversationReady, &ConversationReadyResp{
		ConversationId: conversationId,
		OtherUser:      result.OtherUser,
		Conversation:   result.Conversation,
	}, nil
}

// handleJoinConversation re-checks participation against the store before joining
func (s *WsServer) handleJoinConversation(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload ConversationReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	if err := s.convService.EnsureParticipant(ctx, payload.ConversationId, c.UserId); err != nil {
		return "", nil, err
	}
	s.rooms.Join(c, constant.ConversationRoom(payload.ConversationId))

	return EventJoinedConversation, &ConversationResp{ConversationId: payload.ConversationId}, nil
}

// handleLeaveConversation leaves the room; leaving a room never joined still succeeds
func (s *WsServer) handleLeaveConversation(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload ConversationReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	if s.typing.Set(payload.ConversationId, c.UserId, c.ConnId, false) {
		s.broadcastTyping(ctx, c, payload.ConversationId, false)
	}
	s.rooms.Leave(c, constant.ConversationRoom(payload.ConversationId))

	return EventLeftConversation, &ConversationResp{ConversationId: payload.ConversationId}, nil
}

// handleSendMessage persists a message; the fan-out is done by the message service
func (s *WsServer) handleSendMessage(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload SendMessageReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	info, err := s.msgService.SendMessage(ctx, c.UserId, &service.SendMessageRequest{
		ConversationId: payload.ConversationId,
		Content:        payload.Content,
		ReceiverId:     payload.ReceiverId,
		ClientMsgId:    payload.ClientMsgId,
	})
	if err != nil {
		return "", nil, err
	}
	return EventMessageSent, info, nil
}

// handleTyping relays a typing signal to the rest of the room. Nothing is persisted.
func (s *WsServer) handleTyping(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload TypingReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	if !s.rooms.IsMember(c, constant.ConversationRoom(payload.ConversationId)) {
		return "", nil, errcode.ErrNotJoinedRoom
	}

	isTyping := *payload.IsTyping
	s.typing.Set(payload.ConversationId, c.UserId, c.ConnId, isTyping)
	s.broadcastTyping(ctx, c, payload.ConversationId, isTyping)

	return "", nil, nil
}

// handleMarkNotificationRead marks one notification read; the service confirms on the user room
func (s *WsServer) handleMarkNotificationRead(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload MarkNotificationReadReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	if err := s.notifService.MarkRead(ctx, c.UserId, payload.NotificationId); err != nil {
		return "", nil, err
	}
	return "", nil, nil
}

func (s *WsServer) handleMarkConversationRead(ctx context.Context, c *Client, req *WSRequest) (string, interface{}, error) {
	var payload ConversationReq
	if err := decodePayload(ctx, req, &payload); err != nil {
		return "", nil, err
	}

	receipt, err := s.msgService.MarkConversationRead(ctx, c.UserId, payload.ConversationId)
	if err != nil {
		return "", nil, err
	}
	return EventConversationRead, receipt, nil
}

package service

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/metrics"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"
)

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo  *repository.MessageRepo
	seqRepo  *repository.SeqRepo
	convRepo *repository.ConversationRepo
	userRepo *repository.UserRepo
	repos    *repository.Repositories
	convSvc  *ConversationService
	cfg      config.MessageConfig
	pusher   EventPusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories, convSvc *ConversationService, cfg config.MessageConfig) *MessageService {
	return &MessageService{
		msgRepo:  repos.Message,
		seqRepo:  repos.Seq,
		convRepo: repos.Conversation,
		userRepo: repos.User,
		repos:    repos,
		convSvc:  convSvc,
		cfg:      cfg,
	}
}

// SetPusher sets the event pusher
func (s *MessageService) SetPusher(pusher EventPusher) {
	s.pusher = pusher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
	ReceiverId     string `json:"receiver_id,omitempty"`
	ClientMsgId    string `json:"client_msg_id,omitempty"`
}

// SendMessage persists a message and fans it out to the conversation room, plus the
// receiver's user room when a receiver is named. Nothing is pushed unless the
// write committed.
func (s *MessageService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.MessageInfo, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errcode.ErrEmptyContent
	}
	if s.cfg.MaxContentLength > 0 && utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, errcode.ErrContentTooLong
	}

	conv, err := s.convRepo.GetById(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", req.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	participants := conv.ParticipantIds()
	if !slices.Contains(participants, senderId) {
		return nil, errcode.ErrNotParticipant
	}
	if req.ReceiverId != "" && (req.ReceiverId == senderId || !slices.Contains(participants, req.ReceiverId)) {
		return nil, errcode.ErrInvalidReceiver
	}

	// Idempotent resubmission
	if req.ClientMsgId != "" {
		existing, err := s.msgRepo.GetByClientMsgId(ctx, conv.Id, senderId, req.ClientMsgId)
		if err != nil {
			log.CtxError(ctx, "check idempotency failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
		if existing != nil {
			log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
			return s.withSender(ctx, existing), nil
		}
	}

	seq, err := s.seqRepo.AllocSeq(ctx, conv.Id)
	if err != nil {
		log.CtxError(ctx, "alloc seq failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrSeqAllocFailed
	}

	now := entity.NowUnixMilli()
	msg := &entity.Message{
		ConversationId: conv.Id,
		Seq:            seq,
		SenderId:       senderId,
		Content:        content,
		CreatedAt:      now,
	}
	if req.ClientMsgId != "" {
		msg.ClientMsgId = &req.ClientMsgId
	}
	if req.ReceiverId != "" {
		msg.ReceiverId = &req.ReceiverId
	}

	created := false
	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.msgRepo.Create(ctx, tx, msg)
		if err != nil {
			return err
		}
		if !created {
			// Concurrent resubmission won the unique key
			existing, err := s.msgRepo.GetByClientMsgIdWithTx(ctx, tx, conv.Id, senderId, req.ClientMsgId)
			if err != nil {
				return err
			}
			if existing == nil {
				return gorm.ErrRecordNotFound
			}
			msg = existing
			return nil
		}
		if err := s.convRepo.Touch(ctx, tx, conv.Id, now); err != nil {
			return err
		}
		return s.seqRepo.RaiseMaxSeqWithTx(ctx, tx, conv.Id, seq)
	})
	if err != nil {
		log.CtxError(ctx, "send message failed: conversation_id=%s, sender_id=%s, error=%v", conv.Id, senderId, err)
		return nil, errcode.ErrSendFailed
	}

	info := s.withSender(ctx, msg)
	if !created {
		return info, nil
	}
	metrics.MessagesSent.Inc()

	s.push(ctx, constant.ConversationRoom(conv.Id), EventNewMessage, info)
	if req.ReceiverId != "" {
		s.push(ctx, constant.UserRoom(req.ReceiverId), EventNewDirectMessage, info)
	}

	log.CtxInfo(ctx, "message sent: conversation_id=%s, sender_id=%s, seq=%d", conv.Id, senderId, msg.Seq)
	return info, nil
}

// ListMessages returns a page of history for a participant, oldest first.
// offset counts back from the newest message.
func (s *MessageService) ListMessages(ctx context.Context, userId, conversationId string, limit, offset int) ([]*entity.MessageInfo, error) {
	if err := s.convSvc.EnsureParticipant(ctx, conversationId, userId); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	messages, err := s.msgRepo.ListLatest(ctx, conversationId, limit, offset)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrPullFailed
	}

	senderIds := make([]string, 0, 2)
	for _, m := range messages {
		if !slices.Contains(senderIds, m.SenderId) {
			senderIds = append(senderIds, m.SenderId)
		}
	}
	senders, err := s.userRepo.GetUserInfoMap(ctx, senderIds)
	if err != nil {
		log.CtxWarn(ctx, "load senders failed: %v", err)
		senders = map[string]*entity.UserInfo{}
	}

	infos := make([]*entity.MessageInfo, 0, len(messages))
	for _, m := range messages {
		info := m.ToMessageInfo()
		info.Sender = senders[m.SenderId]
		infos = append(infos, info)
	}
	return infos, nil
}

// MarkConversationRead moves every unread message of the conversation not sent by
// userId to read. Calling it again changes nothing and pushes nothing.
func (s *MessageService) MarkConversationRead(ctx context.Context, userId, conversationId string) (*entity.ReadReceipt, error) {
	if err := s.convSvc.EnsureParticipant(ctx, conversationId, userId); err != nil {
		return nil, err
	}

	now := entity.NowUnixMilli()
	count, err := s.msgRepo.MarkConversationRead(ctx, conversationId, userId, now)
	if err != nil {
		log.CtxError(ctx, "mark conversation read failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return nil, errcode.ErrInternalServer
	}

	receipt := &entity.ReadReceipt{
		ConversationId: conversationId,
		UserId:         userId,
		ReadAt:         now,
		Count:          count,
	}
	if count > 0 {
		s.push(ctx, constant.ConversationRoom(conversationId), EventMessagesRead, receipt)
		log.CtxDebug(ctx, "conversation read: conversation_id=%s, user_id=%s, count=%d", conversationId, userId, count)
	}
	return receipt, nil
}

func (s *MessageService) withSender(ctx context.Context, msg *entity.Message) *entity.MessageInfo {
	info := msg.ToMessageInfo()
	sender, err := s.userRepo.GetById(ctx, msg.SenderId)
	if err != nil {
		log.CtxWarn(ctx, "load sender failed: sender_id=%s, error=%v", msg.SenderId, err)
		info.Sender = &entity.UserInfo{Id: msg.SenderId}
		return info
	}
	info.Sender = sender.ToUserInfo()
	return info
}

func (s *MessageService) push(ctx context.Context, room, event string, data interface{}) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.PushToRoom(ctx, room, event, data); err != nil {
		log.CtxWarn(ctx, "push failed: room=%s, event=%s, error=%v", room, event, err)
	}
}

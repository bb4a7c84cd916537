package service

import (
	"context"
	"slices"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/idgen"
	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"
)

// ConversationService handles conversation-related business logic
type ConversationService struct {
	convRepo *repository.ConversationRepo
	userRepo *repository.UserRepo
	msgRepo  *repository.MessageRepo
	seqRepo  *repository.SeqRepo
	repos    *repository.Repositories
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo: repos.Conversation,
		userRepo: repos.User,
		msgRepo:  repos.Message,
		seqRepo:  repos.Seq,
		repos:    repos,
	}
}

// DirectConversationResult is the outcome of a get-or-create call
type DirectConversationResult struct {
	Conversation *entity.ConversationInfo `json:"conversation"`
	OtherUser    *entity.UserInfo         `json:"other_user"`
	Created      bool                     `json:"created"`
}

// GetOrCreateDirect returns the unique direct conversation between callerId and otherId,
// creating it when absent. Concurrent callers for the same pair converge on one row
// through the unique pair key.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, callerId, otherId string) (*DirectConversationResult, error) {
	if otherId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if callerId == otherId {
		return nil, errcode.ErrSelfConversation
	}

	conv, err := s.findDirect(ctx, callerId, otherId)
	if err != nil {
		log.CtxError(ctx, "find direct conversation failed: caller=%s, other=%s, error=%v", callerId, otherId, err)
		return nil, errcode.ErrInternalServer
	}

	created := false
	if conv == nil {
		exists, err := s.userRepo.Exists(ctx, otherId)
		if err != nil {
			log.CtxError(ctx, "check user exists failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
		if !exists {
			return nil, errcode.ErrUserNotFound
		}

		conv, created, err = s.createDirect(ctx, callerId, otherId)
		if err != nil {
			log.CtxError(ctx, "create direct conversation failed: caller=%s, other=%s, error=%v", callerId, otherId, err)
			return nil, errcode.ErrConvCreateFailed
		}
		if created {
			log.CtxInfo(ctx, "direct conversation created: conversation_id=%s, users=%s,%s", conv.Id, callerId, otherId)
		}
	}

	infos, err := s.userRepo.GetUserInfoMap(ctx, conv.ParticipantIds())
	if err != nil {
		log.CtxError(ctx, "load participants failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrInternalServer
	}

	other := infos[otherId]
	if other == nil {
		// Participant list lookup came back short, resolve the peer directly
		user, err := s.userRepo.GetById(ctx, otherId)
		if err != nil {
			return nil, errcode.ErrUserNotFound
		}
		other = user.ToUserInfo()
		infos[otherId] = other
	}

	info := s.toConversationInfo(conv, infos)
	return &DirectConversationResult{Conversation: info, OtherUser: other, Created: created}, nil
}

func (s *ConversationService) findDirect(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	conv, err := s.convRepo.GetByPairKey(ctx, entity.GenPairKey(userA, userB))
	if err != nil {
		return nil, err
	}
	if conv != nil && conv.IsDirectBetween(userA, userB) {
		return conv, nil
	}
	return s.convRepo.FindDirectBetween(ctx, userA, userB)
}

func (s *ConversationService) createDirect(ctx context.Context, userA, userB string) (*entity.Conversation, bool, error) {
	id, err := idgen.NextID()
	if err != nil {
		return nil, false, err
	}

	pairKey := entity.GenPairKey(userA, userB)
	conv := &entity.Conversation{Id: id, PairKey: &pairKey}
	created := false

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.convRepo.CreateDirect(ctx, tx, conv, userA, userB)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		// Lost the race, the winner's row is committed under the same key
		winner, err := s.convRepo.GetByPairKeyWithTx(ctx, tx, pairKey)
		if err != nil {
			return err
		}
		if winner == nil {
			return gorm.ErrRecordNotFound
		}
		conv = winner
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// IsParticipant reports whether userId belongs to conversationId, reading the store fresh
func (s *ConversationService) IsParticipant(ctx context.Context, conversationId, userId string) (bool, error) {
	ok, err := s.convRepo.IsParticipant(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "check participant failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return false, errcode.ErrInternalServer
	}
	return ok, nil
}

// EnsureParticipant returns ErrConvNotFound or ErrNotParticipant unless userId belongs to conversationId
func (s *ConversationService) EnsureParticipant(ctx context.Context, conversationId, userId string) error {
	if conversationId == "" {
		return errcode.ErrInvalidParam
	}
	ok, err := s.IsParticipant(ctx, conversationId, userId)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: %v", err)
		return errcode.ErrInternalServer
	}
	if conv == nil {
		return errcode.ErrConvNotFound
	}
	return errcode.ErrNotParticipant
}

// GetConversation gets one conversation of userId
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.ConversationInfo, error) {
	if conversationId == "" {
		return nil, errcode.ErrInvalidParam
	}
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if !slices.Contains(conv.ParticipantIds(), userId) {
		return nil, errcode.ErrNotParticipant
	}

	list, err := s.decorate(ctx, userId, []*entity.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// GetUserConversations gets all conversations of userId, most recently active first
func (s *ConversationService) GetUserConversations(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	convs, err := s.convRepo.GetUserConversations(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get user conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return s.decorate(ctx, userId, convs)
}

// GetUnreadCount counts unread messages of userId in conversationId
func (s *ConversationService) GetUnreadCount(ctx context.Context, userId, conversationId string) (int64, error) {
	if err := s.EnsureParticipant(ctx, conversationId, userId); err != nil {
		return 0, err
	}
	count, err := s.msgRepo.CountUnread(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "count unread failed: %v", err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}

// decorate joins participant profiles, unread counts and max seqs onto convs
func (s *ConversationService) decorate(ctx context.Context, userId string, convs []*entity.Conversation) ([]*entity.ConversationInfo, error) {
	if len(convs) == 0 {
		return []*entity.ConversationInfo{}, nil
	}

	convIds := make([]string, 0, len(convs))
	var userIds []string
	for _, conv := range convs {
		convIds = append(convIds, conv.Id)
		userIds = append(userIds, conv.ParticipantIds()...)
	}

	infos, err := s.userRepo.GetUserInfoMap(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "load participants failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	unread, err := s.msgRepo.CountUnreadByConversations(ctx, userId, convIds)
	if err != nil {
		log.CtxError(ctx, "count unread failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	maxSeqs, err := s.seqRepo.GetStoredMaxSeqs(ctx, convIds)
	if err != nil {
		log.CtxError(ctx, "get max seqs failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		info := s.toConversationInfo(conv, infos)
		info.UnreadCount = unread[conv.Id]
		info.MaxSeq = maxSeqs[conv.Id]
		result = append(result, info)
	}
	return result, nil
}

func (s *ConversationService) toConversationInfo(conv *entity.Conversation, infos map[string]*entity.UserInfo) *entity.ConversationInfo {
	participants := make([]*entity.UserInfo, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if info, ok := infos[p.UserId]; ok {
			participants = append(participants, info)
		} else {
			participants = append(participants, &entity.UserInfo{Id: p.UserId})
		}
	}
	return &entity.ConversationInfo{
		ConversationId: conv.Id,
		IsGroup:        conv.IsGroup,
		Participants:   participants,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
}

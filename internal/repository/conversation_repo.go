package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

func preloadParticipants(db *gorm.DB) *gorm.DB {
	return db.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

// GetById gets a conversation with its participants. Returns nil when absent.
func (r *ConversationRepo) GetById(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := preloadParticipants(r.db.WithContext(ctx)).
		Where("id = ?", conversationId).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByPairKey gets the direct conversation stored under pairKey
func (r *ConversationRepo) GetByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	return r.getByPairKey(ctx, r.db, pairKey)
}

// GetByPairKeyWithTx gets the direct conversation stored under pairKey inside tx
func (r *ConversationRepo) GetByPairKeyWithTx(ctx context.Context, tx *gorm.DB, pairKey string) (*entity.Conversation, error) {
	return r.getByPairKey(ctx, tx, pairKey)
}

func (r *ConversationRepo) getByPairKey(ctx context.Context, db *gorm.DB, pairKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := preloadParticipants(db.WithContext(ctx)).
		Where("pair_key = ?", pairKey).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// FindDirectBetween scans the participant rows of userA and userB for a non-group
// conversation whose participant set is exactly {userA, userB}. It covers rows
// created without a pair key.
func (r *ConversationRepo) FindDirectBetween(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := preloadParticipants(r.db.WithContext(ctx)).
		Where("is_group = ?", false).
		Where("id IN (?)", r.db.Model(&entity.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id IN ?", []string{userA, userB})).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		if conv.IsDirectBetween(userA, userB) {
			return conv, nil
		}
	}
	return nil, nil
}

// CreateDirect inserts a direct conversation and its two participants inside tx.
// The insert is guarded by the unique pair key: when another writer already
// holds the key nothing is written and created is false.
func (r *ConversationRepo) CreateDirect(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, userA, userB string) (created bool, err error) {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.Participants = nil

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(conv)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	participants := []*entity.ConversationParticipant{
		{ConversationId: conv.Id, UserId: userA, JoinedAt: now},
		{ConversationId: conv.Id, UserId: userB, JoinedAt: now},
	}
	if err := tx.WithContext(ctx).Create(&participants).Error; err != nil {
		return false, err
	}
	conv.Participants = participants
	return true, nil
}

// IsParticipant checks membership with a fresh read
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationId, userId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserConversations gets all conversations of a user, most recently active first
func (r *ConversationRepo) GetUserConversations(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := preloadParticipants(r.db.WithContext(ctx)).
		Where("id IN (?)", r.db.Model(&entity.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", userId)).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Touch bumps updated_at inside tx
func (r *ConversationRepo) Touch(ctx context.Context, tx *gorm.DB, conversationId string, now int64) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conversationId).
		Update("updated_at", now).Error
}

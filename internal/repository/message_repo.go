package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb}
}

// Create inserts a message inside tx. A duplicate (conversation_id, sender_id, client_msg_id)
// writes nothing and reports created as false.
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) (created bool, err error) {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = entity.NowUnixMilli()
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "sender_id"}, {Name: "client_msg_id"}},
		DoNothing: true,
	}).Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByClientMsgId finds a sender's earlier submission of clientMsgId in a conversation
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, conversationId, senderId, clientMsgId string) (*entity.Message, error) {
	return r.getByClientMsgId(ctx, r.db, conversationId, senderId, clientMsgId)
}

// GetByClientMsgIdWithTx is GetByClientMsgId inside tx
func (r *MessageRepo) GetByClientMsgIdWithTx(ctx context.Context, tx *gorm.DB, conversationId, senderId, clientMsgId string) (*entity.Message, error) {
	return r.getByClientMsgId(ctx, tx, conversationId, senderId, clientMsgId)
}

func (r *MessageRepo) getByClientMsgId(ctx context.Context, db *gorm.DB, conversationId, senderId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id = ? AND client_msg_id = ?", conversationId, senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListLatest returns a page of a conversation's history in ascending seq order.
// offset counts back from the newest message.
func (r *MessageRepo) ListLatest(ctx context.Context, conversationId string, limit, offset int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("seq DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to ascending order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkConversationRead stamps every unread message not sent by readerId.
// Already read rows are never touched, so readAt only moves from NULL to a timestamp.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationId, readerId string, readAt int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationId, readerId).
		Update("read_at", readAt)
	return res.RowsAffected, res.Error
}

// CountUnread counts messages in a conversation not sent by userId and not yet read
func (r *MessageRepo) CountUnread(ctx context.Context, conversationId, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationId, userId).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	ConversationId string
	Unread         int64
}

// CountUnreadByConversations returns unread counts keyed by conversation Id
func (r *MessageRepo) CountUnreadByConversations(ctx context.Context, userId string, conversationIds []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIds))
	if len(conversationIds) == 0 {
		return counts, nil
	}

	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND sender_id <> ? AND read_at IS NULL", conversationIds, userId).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationId] = row.Unread
	}
	return counts, nil
}

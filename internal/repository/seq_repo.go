package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeqRepo is the repository for sequence operations
type SeqRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewSeqRepo creates a new SeqRepo
func NewSeqRepo(db *gorm.DB, rdb *redis.Client) *SeqRepo {
	return &SeqRepo{db: db, rdb: rdb}
}

// AllocSeq allocates a new sequence number for a conversation using Redis INCR.
// A missing key is seeded from seq_conversations first so a flushed Redis never
// hands out a seq that is already stored.
func (r *SeqRepo) AllocSeq(ctx context.Context, conversationId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)

	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		maxSeq, err := r.getStoredMaxSeq(ctx, conversationId)
		if err != nil {
			return 0, err
		}
		if err := r.rdb.SetNX(ctx, key, maxSeq, 0).Err(); err != nil {
			return 0, err
		}
	}

	seq, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetMaxSeq gets the current max sequence for a conversation
func (r *SeqRepo) GetMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	// Try Redis first
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
	seq, err := r.rdb.Get(ctx, key).Int64()
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	return r.getStoredMaxSeq(ctx, conversationId)
}

// GetStoredMaxSeqs returns the durable max seq of each conversation
func (r *SeqRepo) GetStoredMaxSeqs(ctx context.Context, conversationIds []string) (map[string]int64, error) {
	seqs := make(map[string]int64, len(conversationIds))
	if len(conversationIds) == 0 {
		return seqs, nil
	}

	var rows []*entity.SeqConversation
	err := r.db.WithContext(ctx).Where("conversation_id IN ?", conversationIds).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		seqs[row.ConversationId] = row.MaxSeq
	}
	return seqs, nil
}

func (r *SeqRepo) getStoredMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	var seqConv entity.SeqConversation
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return seqConv.MaxSeq, nil
}

// RaiseMaxSeqWithTx records seq as the durable high-water mark when it is above the stored one
func (r *SeqRepo) RaiseMaxSeqWithTx(ctx context.Context, tx *gorm.DB, conversationId string, seq int64) error {
	seqConv := &entity.SeqConversation{
		ConversationId: conversationId,
		MaxSeq:         seq,
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_seq": gorm.Expr("CASE WHEN max_seq < ? THEN ? ELSE max_seq END", seq, seq),
		}),
	}).Create(seqConv).Error
}

package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationTuple identifies a notification for upsert and delete
type NotificationTuple struct {
	UserId        string
	PostId        string
	CommentId     string
	TriggeredById string
	Type          string
}

func (t NotificationTuple) where(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? AND post_id = ? AND comment_id = ? AND triggered_by_id = ? AND type = ?",
		t.UserId, t.PostId, t.CommentId, t.TriggeredById, t.Type)
}

// NotificationRepo is the repository for notification operations
type NotificationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewNotificationRepo creates a new NotificationRepo
func NewNotificationRepo(db *gorm.DB, rdb *redis.Client) *NotificationRepo {
	return &NotificationRepo{db: db, rdb: rdb}
}

// Upsert creates the notification or, when the tuple already exists, resets it to
// unread with a fresh updated_at. The stored row is returned in both cases.
func (r *NotificationRepo) Upsert(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	now := entity.NowUnixMilli()
	n.IsRead = false
	n.CreatedAt = now
	n.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "post_id"}, {Name: "comment_id"}, {Name: "triggered_by_id"}, {Name: "type"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_read":    false,
			"updated_at": now,
		}),
	}).Create(n).Error
	if err != nil {
		return nil, err
	}

	return r.GetByTuple(ctx, NotificationTuple{
		UserId:        n.UserId,
		PostId:        n.PostId,
		CommentId:     n.CommentId,
		TriggeredById: n.TriggeredById,
		Type:          n.Type,
	})
}

// GetByTuple gets a notification by its identifying tuple
func (r *NotificationRepo) GetByTuple(ctx context.Context, t NotificationTuple) (*entity.Notification, error) {
	var n entity.Notification
	err := t.where(r.db.WithContext(ctx)).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// GetById gets a notification by Id
func (r *NotificationRepo) GetById(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// DeleteByTuple deletes the notification matching t and returns the number of rows removed
func (r *NotificationRepo) DeleteByTuple(ctx context.Context, t NotificationTuple) (int64, error) {
	res := t.where(r.db.WithContext(ctx)).Delete(&entity.Notification{})
	return res.RowsAffected, res.Error
}

// MarkRead marks one notification of userId as read
func (r *NotificationRepo) MarkRead(ctx context.Context, userId, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND user_id = ?", id, userId).
		Update("is_read", true).Error
}

// MarkAllRead marks every unread notification of userId as read
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userId string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userId, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// ListByUser lists notifications of userId, most recently surfaced first
func (r *NotificationRepo) ListByUser(ctx context.Context, userId string, limit, offset int, unreadOnly bool) ([]*entity.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userId)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var list []*entity.Notification
	err := query.
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CountUnread counts unread notifications of userId
func (r *NotificationRepo) CountUnread(ctx context.Context, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userId, false).
		Count(&count).Error
	return count, err
}

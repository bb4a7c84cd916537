package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// PresenceRepo mirrors user-room presence into Redis so other instances can answer online queries
type PresenceRepo struct {
	rdb *redis.Client
}

// NewPresenceRepo creates a new PresenceRepo
func NewPresenceRepo(rdb *redis.Client) *PresenceRepo {
	return &PresenceRepo{rdb: rdb}
}

func onlineKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyOnline(), userId)
}

// SetOnline marks userId online for ttl
func (r *PresenceRepo) SetOnline(ctx context.Context, userId string, ttl time.Duration) error {
	return r.rdb.Set(ctx, onlineKey(userId), entity.NowUnixMilli(), ttl).Err()
}

// RefreshOnline extends the online TTL of every given user in one pipeline
func (r *PresenceRepo) RefreshOnline(ctx context.Context, userIds []string, ttl time.Duration) error {
	if len(userIds) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	now := entity.NowUnixMilli()
	for _, userId := range userIds {
		pipe.Set(ctx, onlineKey(userId), now, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline removes the online marker of userId
func (r *PresenceRepo) SetOffline(ctx context.Context, userId string) error {
	return r.rdb.Del(ctx, onlineKey(userId)).Err()
}

// IsOnline reports whether userId has a live online marker
func (r *PresenceRepo) IsOnline(ctx context.Context, userId string) (bool, error) {
	n, err := r.rdb.Exists(ctx, onlineKey(userId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

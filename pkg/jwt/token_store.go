package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// TokenStatus is the server-side state of an issued token
type TokenStatus int

const (
	TokenUnknown TokenStatus = iota
	TokenActive
	TokenKicked
	TokenLoggedOut
)

// TokenStore keeps one hash per user and platform, mapping each issued token to its status.
// A token that verifies cryptographically is only usable while its status is TokenActive.
type TokenStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(rdb *redis.Client, expireHours int) *TokenStore {
	return &TokenStore{
		rdb: rdb,
		ttl: time.Duration(expireHours) * time.Hour,
	}
}

func (s *TokenStore) key(userId string, platformId int) string {
	return fmt.Sprintf(constant.RedisKeyToken(), userId, platformId)
}

// Issue records token as active and kicks every other active token of the same user and platform.
// It returns the kicked tokens.
func (s *TokenStore) Issue(ctx context.Context, userId string, platformId int, token string) ([]string, error) {
	key := s.key(userId, platformId)

	existing, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	var kicked []string
	fields := []interface{}{token, int(TokenActive)}
	for other, raw := range existing {
		if other == token || parseStatus(raw) != TokenActive {
			continue
		}
		kicked = append(kicked, other)
		fields = append(fields, other, int(TokenKicked))
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return kicked, nil
}

// Status returns the recorded status of token, TokenUnknown if it was never issued or has expired
func (s *TokenStore) Status(ctx context.Context, userId string, platformId int, token string) (TokenStatus, error) {
	raw, err := s.rdb.HGet(ctx, s.key(userId, platformId), token).Result()
	if errors.Is(err, redis.Nil) {
		return TokenUnknown, nil
	}
	if err != nil {
		return TokenUnknown, fmt.Errorf("get token status: %w", err)
	}
	return parseStatus(raw), nil
}

// Active reports whether token may still be used
func (s *TokenStore) Active(ctx context.Context, userId string, platformId int, token string) (bool, error) {
	status, err := s.Status(ctx, userId, platformId, token)
	if err != nil {
		return false, err
	}
	return status == TokenActive, nil
}

// Revoke marks a known token as logged out. Unknown tokens are ignored.
func (s *TokenStore) Revoke(ctx context.Context, userId string, platformId int, token string) error {
	status, err := s.Status(ctx, userId, platformId, token)
	if err != nil || status == TokenUnknown {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key(userId, platformId), token, int(TokenLoggedOut)).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func parseStatus(raw string) TokenStatus {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return TokenUnknown
	}
	return TokenStatus(n)
}

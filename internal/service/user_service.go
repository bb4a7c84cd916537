package service

import (
	"context"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo     *repository.UserRepo
	presenceRepo *repository.PresenceRepo
}

// NewUserService creates a new UserService
func NewUserService(repos *repository.Repositories) *UserService {
	return &UserService{
		userRepo:     repos.User,
		presenceRepo: repos.Presence,
	}
}

// GetUserInfo gets user info by Id
func (s *UserService) GetUserInfo(ctx context.Context, userId string) (*entity.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		log.CtxDebug(ctx, "get user failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrUserNotFound
	}
	return user.ToUserInfo(), nil
}

// UserOnlineStatus reports presence of a user across all instances
type UserOnlineStatus struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

// GetOnlineStatus reads the Redis presence marker of userId
func (s *UserService) GetOnlineStatus(ctx context.Context, userId string) (*UserOnlineStatus, error) {
	if userId == "" {
		return nil, errcode.ErrInvalidParam
	}
	online, err := s.presenceRepo.IsOnline(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get online status failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return &UserOnlineStatus{UserId: userId, Online: online}, nil
}

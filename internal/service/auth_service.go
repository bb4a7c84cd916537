package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/jwt"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication logic
type AuthService struct {
	userRepo   *repository.UserRepo
	cfg        *config.Config
	tokenStore *jwt.TokenStore
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepo, cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cfg:        cfg,
		tokenStore: jwt.NewTokenStore(rdb, cfg.JWT.ExpireHours),
	}
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	PlatformId int    `json:"platform_id"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token    string           `json:"token"`
	UserInfo *entity.UserInfo `json:"user_info"`
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserInfo, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errcode.ErrInvalidParam
	}

	taken, err := s.userRepo.UsernameOrEmailTaken(ctx, req.Username, req.Email)
	if err != nil {
		log.CtxError(ctx, "check user exists failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if taken {
		return nil, errcode.ErrUserExists
	}

	// Hash password with bcrypt
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	user := &entity.User{
		Id:       uuid.New().String(),
		Username: req.Username,
		Email:    req.Email,
		Avatar:   req.Avatar,
		Role:     constant.RoleUser,
		Password: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user registered: user_id=%s, username=%s", user.Id, user.Username)
	return user.ToUserInfo(), nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		log.CtxDebug(ctx, "user not found: username=%s, error=%v", req.Username, err)
		return nil, errcode.ErrUserNotFound
	}

	// Verify password with bcrypt
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrPasswordWrong
	}

	token, err := jwt.GenerateToken(user.Id, req.PlatformId, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	// Single device per platform
	kicked, err := s.tokenStore.Issue(ctx, user.Id, req.PlatformId, token)
	if err != nil {
		log.CtxError(ctx, "issue token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if len(kicked) > 0 {
		log.CtxInfo(ctx, "kicked %d tokens for user_id=%s, platform_id=%d", len(kicked), user.Id, req.PlatformId)
	}

	log.CtxInfo(ctx, "user logged in: user_id=%s, platform_id=%d", user.Id, req.PlatformId)
	return &LoginResponse{
		Token:    token,
		UserInfo: user.ToUserInfo(),
	}, nil
}

// VerifyToken resolves a bearer credential to claims. Native tokens must still be
// live in the token store; external tokens are accepted on signature alone.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, errcode.ErrTokenMissing
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err == nil {
		active, err := s.tokenStore.Active(ctx, claims.UserId, claims.PlatformId, token)
		if err != nil {
			log.CtxWarn(ctx, "check token status failed: %v", err)
			// Fall back to JWT validation only if Redis check fails
			return claims, nil
		}
		if !active {
			return nil, errcode.ErrTokenInvalid
		}
		return claims, nil
	}

	if errors.Is(err, errcode.ErrTokenExpired) {
		return nil, errcode.ErrTokenExpired
	}

	if s.cfg.ExternalJWT.Enabled {
		ext, extErr := jwt.ParseExternalToken(
			token,
			s.cfg.ExternalJWT.Secret,
			s.cfg.ExternalJWT.Issuer,
			s.cfg.ExternalJWT.DefaultRole,
			s.cfg.ExternalJWT.DefaultPlatformId,
		)
		if extErr == nil {
			return ext, nil
		}
		log.CtxDebug(ctx, "external token rejected: %v", extErr)
	}

	return nil, errcode.ErrTokenInvalid
}

// LookupIdentity loads the connection identity of userId
func (s *AuthService) LookupIdentity(ctx context.Context, userId string) (*entity.Identity, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errcode.ErrUserNotFound
		}
		log.CtxError(ctx, "get user failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return user.ToIdentity(), nil
}

// Logout invalidates a user's token
func (s *AuthService) Logout(ctx context.Context, userId string, platformId int, token string) error {
	if err := s.tokenStore.Revoke(ctx, userId, platformId, token); err != nil {
		log.CtxError(ctx, "revoke token failed: %v", err)
		return errcode.ErrInternalServer
	}
	log.CtxInfo(ctx, "user logged out: user_id=%s, platform_id=%d", userId, platformId)
	return nil
}

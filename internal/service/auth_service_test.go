package service

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RegisterLoginVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, &RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.Id)

	_, err = env.auth.Register(ctx, &RegisterRequest{Username: "alice", Email: "other@example.com", Password: "x"})
	assert.ErrorIs(t, err, errcode.ErrUserExists)

	_, err = env.auth.Login(ctx, &LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, errcode.ErrPasswordWrong)

	resp, err := env.auth.Login(ctx, &LoginRequest{Username: "alice", Password: "secret", PlatformId: constant.PlatformIdWeb})
	require.NoError(t, err)

	claims, err := env.auth.VerifyToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.Id, claims.UserId)

	identity, err := env.auth.LookupIdentity(ctx, claims.UserId)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, constant.RoleUser, identity.Role)

	require.NoError(t, env.auth.Logout(ctx, user.Id, constant.PlatformIdWeb, resp.Token))
	_, err = env.auth.VerifyToken(ctx, resp.Token)
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestAuthService_VerifyTokenFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.VerifyToken(ctx, "")
	assert.ErrorIs(t, err, errcode.ErrTokenMissing)

	_, err = env.auth.VerifyToken(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)

	other, err := jwt.GenerateToken("alice", 0, "another-secret", 1)
	require.NoError(t, err)
	_, err = env.auth.VerifyToken(ctx, other)
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)

	stale, err := jwt.GenerateToken("alice", 0, env.cfg.JWT.Secret, -1)
	require.NoError(t, err)
	_, err = env.auth.VerifyToken(ctx, stale)
	assert.ErrorIs(t, err, errcode.ErrTokenExpired)

	_, err = env.auth.LookupIdentity(ctx, "ghost")
	assert.ErrorIs(t, err, errcode.ErrUserNotFound)
}

func TestAuthService_ExternalToken(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ExternalJWT.Enabled = true
	env.cfg.ExternalJWT.Secret = "main-site"
	ctx := context.Background()

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &jwt.ExternalClaims{
		UserId: 42,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("main-site"))
	require.NoError(t, err)

	claims, err := env.auth.VerifyToken(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, "u___42", claims.UserId)
	assert.True(t, claims.External)
}

func TestUserService_OnlineStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedUsers(t, "alice")
	ctx := context.Background()

	status, err := env.user.GetOnlineStatus(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, status.Online)

	require.NoError(t, env.repos.Presence.SetOnline(ctx, "alice", time.Minute))
	status, err = env.user.GetOnlineStatus(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.Online)

	info, err := env.user.GetUserInfo(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "name_alice", info.Username)

	_, err = env.user.GetUserInfo(ctx, "ghost")
	assert.ErrorIs(t, err, errcode.ErrUserNotFound)
}

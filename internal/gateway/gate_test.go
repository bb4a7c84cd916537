package gateway

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshake_Credential(t *testing.T) {
	cases := []struct {
		name string
		hs   handshake
		want string
	}{
		{name: "query", hs: handshake{Token: "q", Authorization: "Bearer h"}, want: "q"},
		{name: "bearer header", hs: handshake{Authorization: "Bearer h"}, want: "h"},
		{name: "lowercase scheme", hs: handshake{Authorization: "bearer h"}, want: "h"},
		{name: "other scheme", hs: handshake{Authorization: "Basic abc"}, want: ""},
		{name: "bare prefix", hs: handshake{Authorization: "Bearer "}, want: ""},
		{name: "none", hs: handshake{}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.hs.credential())
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://devcircle.io"}
	assert.True(t, originAllowed("", allowed))
	assert.True(t, originAllowed("https://DevCircle.io", allowed))
	assert.False(t, originAllowed("https://evil.example", allowed))
	assert.False(t, originAllowed("https://devcircle.io", nil))
	assert.True(t, originAllowed("https://anything", []string{"*"}))
}

func TestWsServer_HandshakeRejections(t *testing.T) {
	env := newTestEnv(t)
	aliceId, token := env.registerAndLogin(t, "alice", constant.PlatformIdWeb)

	t.Run("missing token", func(t *testing.T) {
		status, code := env.dialStatus(t, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrTokenMissing.Code, code)
	})

	t.Run("invalid token", func(t *testing.T) {
		status, code := env.dialStatus(t, QueryToken+"=garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrTokenInvalid.Code, code)
	})

	t.Run("expired token", func(t *testing.T) {
		stale, err := jwt.GenerateToken(aliceId, constant.PlatformIdWeb, env.cfg.JWT.Secret, -1)
		require.NoError(t, err)
		status, code := env.dialStatus(t, QueryToken+"="+url.QueryEscape(stale), nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrTokenExpired.Code, code)
	})

	t.Run("send_id mismatch", func(t *testing.T) {
		q := url.Values{QueryToken: {token}, QuerySendId: {"someone-else"}}
		status, code := env.dialStatus(t, q.Encode(), nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrTokenMismatch.Code, code)
	})

	t.Run("bearer header accepted", func(t *testing.T) {
		header := http.Header{}
		header.Set(AuthorizationHeader, BearerPrefix+token)
		status, _ := env.dialStatus(t, QuerySendId+"="+aliceId, header)
		assert.Equal(t, http.StatusSwitchingProtocols, status)
	})

	t.Run("user removed after login", func(t *testing.T) {
		bobId, bobToken := env.registerAndLogin(t, "bob", constant.PlatformIdWeb)
		require.NoError(t, env.repos.DB.Delete(&entity.User{}, "id = ?", bobId).Error)

		status, code := env.dialStatus(t, QueryToken+"="+url.QueryEscape(bobToken), nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrUserNotFound.Code, code)
	})

	t.Run("logged out token", func(t *testing.T) {
		_, carolToken := env.registerAndLogin(t, "carol", constant.PlatformIdWeb)
		claims, err := env.auth.VerifyToken(context.Background(), carolToken)
		require.NoError(t, err)
		require.NoError(t, env.auth.Logout(context.Background(), claims.UserId, claims.PlatformId, carolToken))

		status, code := env.dialStatus(t, QueryToken+"="+url.QueryEscape(carolToken), nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, errcode.ErrTokenInvalid.Code, code)
	})
}

func TestWsServer_ConnectionLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.WebSocket.MaxConnNum = 1 })
	_, token := env.registerAndLogin(t, "alice", constant.PlatformIdWeb)

	env.dial(t, token)

	status, code := env.dialStatus(t, QueryToken+"="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, errcode.ErrConnOverLimit.Code, code)
}

func TestWsServer_ConnectedIdentity(t *testing.T) {
	env := newTestEnv(t)
	aliceId, token := env.registerAndLogin(t, "alice", constant.PlatformIdWeb)

	_, connected := env.dial(t, token)
	require.NotNil(t, connected.Identity)
	assert.NotEmpty(t, connected.ConnId)
	assert.Equal(t, aliceId, connected.Identity.Id)
	assert.Equal(t, "alice", connected.Identity.Username)
	assert.Equal(t, "alice@example.com", connected.Identity.Email)
	assert.Equal(t, constant.RoleUser, connected.Identity.Role)

	assert.Equal(t, int64(1), env.server.GetOnlineConnCount())
	assert.Equal(t, int64(1), env.server.GetOnlineUserCount())
}

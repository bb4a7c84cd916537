package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/jwt"
	"github.com/mbeoliero/devcircle/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
	// PlatformIdKey is the context key for platform Id
	PlatformIdKey = "platform_id"
	// TokenKey is the context key for the raw bearer token
	TokenKey = "token"
)

// TokenVerifier resolves a bearer token to claims
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// JWTAuth is the JWT authentication middleware
func JWTAuth(verifier TokenVerifier) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.Unauthorized(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthorized(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		claims, err := verifier.VerifyToken(ctx, tokenString)
		if err != nil {
			e := errcode.As(err)
			if e.Code != errcode.ErrTokenMissing.Code && e.Code != errcode.ErrTokenExpired.Code {
				e = errcode.ErrTokenInvalid
			}
			response.Unauthorized(ctx, c, e)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set(UserIdKey, claims.UserId)
		c.Set(PlatformIdKey, claims.PlatformId)
		c.Set(TokenKey, tokenString)

		c.Next(ctx)
	}
}

// GetUserId gets user Id from context
func GetUserId(c *app.RequestContext) string {
	if v, ok := c.Get(UserIdKey); ok {
		return v.(string)
	}
	return ""
}

// GetPlatformId gets platform Id from context
func GetPlatformId(c *app.RequestContext) int {
	if v, ok := c.Get(PlatformIdKey); ok {
		return v.(int)
	}
	return 0
}

// GetToken gets the bearer token from context
func GetToken(c *app.RequestContext) string {
	if v, ok := c.Get(TokenKey); ok {
		return v.(string)
	}
	return ""
}

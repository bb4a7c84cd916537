package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/mbeoliero/devcircle/pkg/errcode"
)

// ExternalClaims represents claims minted by the main site.
// The external token carries an int user_id which is converted
// to this service's string user id via Actor.
type ExternalClaims struct {
	UserId int64  `json:"user_id"`
	Role   string `json:"role,omitempty"` // "user", "moderator", "admin". Falls back to configured default.
	jwt.RegisteredClaims
}

// ParseExternalToken parses a main-site JWT and converts it to Claims.
//
// Parameters:
//   - tokenString: the raw JWT token from the main site
//   - secret: the signing secret of the main site
//   - issuer: expected issuer (empty string to skip issuer check)
//   - defaultRole: fallback role when the token doesn't carry one
//   - defaultPlatformId: platform ID to assign to the converted claims
func ParseExternalToken(tokenString, secret, issuer, defaultRole string, defaultPlatformId int) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ExternalClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	extClaims, ok := token.Claims.(*ExternalClaims)
	if !ok || !token.Valid || extClaims.UserId <= 0 {
		return nil, errcode.ErrTokenInvalid
	}

	role := extClaims.Role
	if role == "" {
		role = defaultRole
	}

	actor := Actor{Id: extClaims.UserId, Role: role}
	userId, err := actor.ToUserId()
	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	return &Claims{
		UserId:           userId,
		PlatformId:       defaultPlatformId,
		External:         true,
		RegisteredClaims: extClaims.RegisteredClaims,
	}, nil
}

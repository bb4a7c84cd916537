package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/metrics"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// handshake is the transport-independent view of an upgrade request
type handshake struct {
	Token         string
	Authorization string
	SendId        string
	PlatformId    string
	RemoteAddr    string
}

// credential picks the query token first, then a bearer Authorization header
func (h *handshake) credential() string {
	if h.Token != "" {
		return h.Token
	}
	if len(h.Authorization) > len(BearerPrefix) && strings.EqualFold(h.Authorization[:len(BearerPrefix)], BearerPrefix) {
		return strings.TrimSpace(h.Authorization[len(BearerPrefix):])
	}
	return ""
}

// admission is the outcome of a successful handshake
type admission struct {
	Identity   *entity.Identity
	PlatformId int
}

// rejection carries the HTTP status and business error of a refused handshake
type rejection struct {
	Status int
	Err    *errcode.Error
}

// authenticate runs every check that must pass before the upgrade. Nothing is
// registered and no frame is exchanged when it rejects.
func (s *WsServer) authenticate(ctx context.Context, hs *handshake) (*admission, *rejection) {
	if s.maxConnNum > 0 && s.onlineConnNum.Load() >= s.maxConnNum {
		return nil, s.reject(ctx, hs, http.StatusServiceUnavailable, errcode.ErrConnOverLimit)
	}

	token := hs.credential()
	if token == "" {
		return nil, s.reject(ctx, hs, http.StatusUnauthorized, errcode.ErrTokenMissing)
	}

	claims, err := s.authService.VerifyToken(ctx, token)
	if err != nil {
		e := errcode.As(err)
		if e.Code != errcode.ErrTokenMissing.Code && e.Code != errcode.ErrTokenExpired.Code {
			e = errcode.ErrTokenInvalid
		}
		return nil, s.reject(ctx, hs, http.StatusUnauthorized, e)
	}

	if hs.SendId != "" && hs.SendId != claims.UserId {
		return nil, s.reject(ctx, hs, http.StatusUnauthorized, errcode.ErrTokenMismatch)
	}

	identity, err := s.authService.LookupIdentity(ctx, claims.UserId)
	if err != nil {
		e := errcode.As(err)
		if e.Code != errcode.ErrUserNotFound.Code {
			return nil, s.reject(ctx, hs, http.StatusInternalServerError, errcode.ErrInternalServer)
		}
		return nil, s.reject(ctx, hs, http.StatusUnauthorized, e)
	}

	platformId := claims.PlatformId
	if platformId == 0 && hs.PlatformId != "" {
		platformId, _ = strconv.Atoi(hs.PlatformId)
	}

	return &admission{Identity: identity, PlatformId: platformId}, nil
}

func (s *WsServer) reject(ctx context.Context, hs *handshake, status int, e *errcode.Error) *rejection {
	metrics.HandshakeRejected.WithLabelValues(strconv.Itoa(e.Code)).Inc()
	log.CtxDebug(ctx, "handshake rejected: remote=%s, send_id=%s, code=%d, msg=%s", hs.RemoteAddr, hs.SendId, e.Code, e.Msg)
	return &rejection{Status: status, Err: e}
}

// originAllowed validates an Origin header against the configured origins.
// Requests without an Origin header come from non-browser clients and pass.
func originAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

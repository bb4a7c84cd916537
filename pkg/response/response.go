package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Response represents a standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response. Errors without a business code are logged
// and reported as internal errors so store details never reach the client.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e := errcode.As(err)
	if e == errcode.ErrInternalServer && err != errcode.ErrInternalServer {
		log.CtxError(ctx, "unhandled error: path=%s, error=%v", c.Path(), err)
	}

	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	if e == nil {
		e = errcode.ErrUnauthorized
	}
	c.JSON(http.StatusUnauthorized, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

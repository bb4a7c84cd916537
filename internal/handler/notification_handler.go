package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/devcircle/internal/middleware"
	"github.com/mbeoliero/devcircle/internal/service"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/response"
)

const (
	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
)

// NotificationHandler handles notification requests
type NotificationHandler struct {
	notifService *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

// List lists the caller's notifications, newest activity first
func (h *NotificationHandler) List(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	limit := queryInt(c, "limit", defaultNotificationPageSize)
	if limit == 0 || limit > maxNotificationPageSize {
		limit = maxNotificationPageSize
	}

	list, err := h.notifService.List(ctx, userId, limit, queryInt(c, "offset", 0), queryBool(c, "unread_only"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, list)
}

// UnreadCount counts the caller's unread notifications
func (h *NotificationHandler) UnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.notifService.UnreadCount(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"unread_count": count,
	})
}

// NotificationTargetRequest names the recipient and the content a notification is about.
// The triggering user is always the caller.
type NotificationTargetRequest struct {
	UserId    string `json:"user_id"`
	PostId    string `json:"post_id"`
	CommentId string `json:"comment_id"`
	Type      string `json:"type"`
}

// Emit creates or re-surfaces a notification triggered by the caller
func (h *NotificationHandler) Emit(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req NotificationTargetRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	info, err := h.notifService.EmitOrUpdate(ctx, &service.EmitNotificationRequest{
		UserId:        req.UserId,
		PostId:        req.PostId,
		CommentId:     req.CommentId,
		TriggeredById: userId,
		Type:          req.Type,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// Delete retracts a vote notification triggered by the caller
func (h *NotificationHandler) Delete(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req NotificationTargetRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	removed, err := h.notifService.DeleteNotification(ctx, &service.DeleteNotificationRequest{
		UserId:        req.UserId,
		PostId:        req.PostId,
		CommentId:     req.CommentId,
		TriggeredById: userId,
		Type:          req.Type,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"removed": removed,
	})
}

// MarkNotificationReadRequest names one notification
type MarkNotificationReadRequest struct {
	NotificationId string `json:"notification_id"`
}

// MarkRead marks one of the caller's notifications read
func (h *NotificationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req MarkNotificationReadRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.notifService.MarkRead(ctx, userId, req.NotificationId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// MarkAllRead marks every notification of the caller read
func (h *NotificationHandler) MarkAllRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.notifService.MarkAllRead(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"count": count,
	})
}

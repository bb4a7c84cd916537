package service

import (
	"context"

	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/devcircle/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

// NotificationService handles notification-related business logic
type NotificationService struct {
	notifRepo *repository.NotificationRepo
	userRepo  *repository.UserRepo
	pusher    EventPusher
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repos *repository.Repositories) *NotificationService {
	return &NotificationService{
		notifRepo: repos.Notification,
		userRepo:  repos.User,
	}
}

// SetPusher sets the event pusher
func (s *NotificationService) SetPusher(pusher EventPusher) {
	s.pusher = pusher
}

// EmitNotificationRequest represents an activity notification to surface
type EmitNotificationRequest struct {
	UserId        string `json:"user_id"`
	PostId        string `json:"post_id,omitempty"`
	CommentId     string `json:"comment_id,omitempty"`
	TriggeredById string `json:"triggered_by_id"`
	Type          string `json:"type"`
}

// DeleteNotificationRequest identifies a vote notification to retract
type DeleteNotificationRequest struct {
	UserId        string `json:"user_id"`
	PostId        string `json:"post_id,omitempty"`
	CommentId     string `json:"comment_id,omitempty"`
	TriggeredById string `json:"triggered_by_id"`
	Type          string `json:"type"`
}

// NotificationReadEvent is pushed to the owner's user room after a mark-read
type NotificationReadEvent struct {
	NotificationId string `json:"notification_id,omitempty"`
	All            bool   `json:"all,omitempty"`
	Count          int64  `json:"count"`
}

// EmitOrUpdate creates the notification or re-surfaces an existing one with the same
// tuple as unread. A user acting on their own content gets nothing: (nil, nil).
func (s *NotificationService) EmitOrUpdate(ctx context.Context, req *EmitNotificationRequest) (*entity.NotificationInfo, error) {
	if req.UserId == "" || req.TriggeredById == "" || !constant.IsValidNotificationType(req.Type) {
		return nil, errcode.ErrInvalidParam
	}
	if req.UserId == req.TriggeredById {
		return nil, nil
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate notification id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	n, err := s.notifRepo.Upsert(ctx, &entity.Notification{
		Id:            id,
		UserId:        req.UserId,
		PostId:        req.PostId,
		CommentId:     req.CommentId,
		TriggeredById: req.TriggeredById,
		Type:          req.Type,
	})
	if err != nil {
		log.CtxError(ctx, "upsert notification failed: user_id=%s, type=%s, error=%v", req.UserId, req.Type, err)
		return nil, errcode.ErrInternalServer
	}
	if n == nil {
		return nil, errcode.ErrNotificationNotFound
	}

	info := n.ToNotificationInfo()
	if trigger, err := s.userRepo.GetById(ctx, req.TriggeredById); err == nil {
		info.TriggeredBy = trigger.ToUserInfo()
	} else {
		log.CtxWarn(ctx, "load triggering user failed: user_id=%s, error=%v", req.TriggeredById, err)
	}

	s.push(ctx, constant.UserRoom(req.UserId), EventNewNotification, info)
	return info, nil
}

// DeleteNotification retracts a vote notification. Returns whether a row was removed.
func (s *NotificationService) DeleteNotification(ctx context.Context, req *DeleteNotificationRequest) (bool, error) {
	if req.UserId == "" || req.TriggeredById == "" {
		return false, errcode.ErrInvalidParam
	}
	if !constant.IsVoteNotification(req.Type) {
		return false, errcode.ErrNotVoteNotification
	}

	removed, err := s.notifRepo.DeleteByTuple(ctx, repository.NotificationTuple{
		UserId:        req.UserId,
		PostId:        req.PostId,
		CommentId:     req.CommentId,
		TriggeredById: req.TriggeredById,
		Type:          req.Type,
	})
	if err != nil {
		log.CtxError(ctx, "delete notification failed: %v", err)
		return false, errcode.ErrInternalServer
	}
	return removed > 0, nil
}

// MarkRead marks one notification of userId as read and acknowledges it to the user's other connections
func (s *NotificationService) MarkRead(ctx context.Context, userId, notificationId string) error {
	if notificationId == "" {
		return errcode.ErrInvalidParam
	}
	n, err := s.notifRepo.GetById(ctx, notificationId)
	if err != nil {
		log.CtxError(ctx, "get notification failed: %v", err)
		return errcode.ErrInternalServer
	}
	if n == nil || n.UserId != userId {
		return errcode.ErrNotificationNotFound
	}

	if err := s.notifRepo.MarkRead(ctx, userId, notificationId); err != nil {
		log.CtxError(ctx, "mark notification read failed: %v", err)
		return errcode.ErrInternalServer
	}

	s.push(ctx, constant.UserRoom(userId), EventNotificationRead, &NotificationReadEvent{NotificationId: notificationId, Count: 1})
	return nil
}

// MarkAllRead marks every notification of userId as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userId string) (int64, error) {
	count, err := s.notifRepo.MarkAllRead(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "mark all notifications read failed: %v", err)
		return 0, errcode.ErrInternalServer
	}
	s.push(ctx, constant.UserRoom(userId), EventNotificationRead, &NotificationReadEvent{All: true, Count: count})
	return count, nil
}

// List lists notifications of userId with triggering users joined in
func (s *NotificationService) List(ctx context.Context, userId string, limit, offset int, unreadOnly bool) ([]*entity.NotificationInfo, error) {
	list, err := s.notifRepo.ListByUser(ctx, userId, limit, offset, unreadOnly)
	if err != nil {
		log.CtxError(ctx, "list notifications failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	triggerIds := make([]string, 0, len(list))
	for _, n := range list {
		triggerIds = append(triggerIds, n.TriggeredById)
	}
	triggers, err := s.userRepo.GetUserInfoMap(ctx, triggerIds)
	if err != nil {
		log.CtxWarn(ctx, "load triggering users failed: %v", err)
		triggers = map[string]*entity.UserInfo{}
	}

	infos := make([]*entity.NotificationInfo, 0, len(list))
	for _, n := range list {
		info := n.ToNotificationInfo()
		info.TriggeredBy = triggers[n.TriggeredById]
		infos = append(infos, info)
	}
	return infos, nil
}

// UnreadCount counts unread notifications of userId
func (s *NotificationService) UnreadCount(ctx context.Context, userId string) (int64, error) {
	count, err := s.notifRepo.CountUnread(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "count unread notifications failed: %v", err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}

func (s *NotificationService) push(ctx context.Context, room, event string, data interface{}) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.PushToRoom(ctx, room, event, data); err != nil {
		log.CtxWarn(ctx, "push failed: room=%s, event=%s, error=%v", room, event, err)
	}
}

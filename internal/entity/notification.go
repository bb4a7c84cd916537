package entity

// Notification represents an activity notification addressed to a user.
// PostId and CommentId are stored as "" when absent so the upsert tuple stays unique.
type Notification struct {
	Id            string `json:"id" gorm:"column:id;primaryKey;size:64"`
	UserId        string `json:"user_id" gorm:"column:user_id;size:64;uniqueIndex:uk_notification_tuple;index:idx_user_read"`
	PostId        string `json:"post_id" gorm:"column:post_id;size:64;uniqueIndex:uk_notification_tuple"`
	CommentId     string `json:"comment_id" gorm:"column:comment_id;size:64;uniqueIndex:uk_notification_tuple"`
	TriggeredById string `json:"triggered_by_id" gorm:"column:triggered_by_id;size:64;uniqueIndex:uk_notification_tuple"`
	Type          string `json:"type" gorm:"column:type;size:16;uniqueIndex:uk_notification_tuple"`
	IsRead        bool   `json:"is_read" gorm:"column:is_read;index:idx_user_read"`
	CreatedAt     int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// NotificationInfo represents notification info for API response and real-time push
type NotificationInfo struct {
	Id            string    `json:"id"`
	UserId        string    `json:"user_id"`
	PostId        string    `json:"post_id,omitempty"`
	CommentId     string    `json:"comment_id,omitempty"`
	TriggeredById string    `json:"triggered_by_id"`
	Type          string    `json:"type"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     int64     `json:"created_at"`
	UpdatedAt     int64     `json:"updated_at"`
	TriggeredBy   *UserInfo `json:"triggered_by,omitempty"`
}

// ToNotificationInfo converts Notification to NotificationInfo
func (n *Notification) ToNotificationInfo() *NotificationInfo {
	return &NotificationInfo{
		Id:            n.Id,
		UserId:        n.UserId,
		PostId:        n.PostId,
		CommentId:     n.CommentId,
		TriggeredById: n.TriggeredById,
		Type:          n.Type,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

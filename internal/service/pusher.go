package service

import "context"

// EventPusher delivers a server event to every connection joined to a room.
// Delivery is best effort; an error means the event was not queued.
type EventPusher interface {
	PushToRoom(ctx context.Context, room, event string, data interface{}) error
}

// Server events emitted by services
const (
	EventNewMessage       = "new_message"
	EventNewDirectMessage = "new_direct_message"
	EventMessagesRead     = "messages_read"
	EventNewNotification  = "new_notification"
	EventNotificationRead = "notification_read"
)

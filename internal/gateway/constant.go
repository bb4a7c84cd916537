package gateway

// Client → server events
const (
	EventGetOrCreateConversation = "get_or_create_conversation"
	EventJoinConversation        = "join_conversation"
	EventLeaveConversation       = "leave_conversation"
	EventSendMessage             = "send_message"
	EventTyping                  = "typing"
	EventMarkNotificationRead    = "mark_notification_read"
	EventMarkConversationRead    = "mark_conversation_read"
)

// Server → client events. Room pushes emitted by services use the names in package service.
const (
	EventConnected          = "connected"
	EventConversationReady  = "conversation_ready"
	EventJoinedConversation = "joined_conversation"
	EventLeftConversation   = "left_conversation"
	EventMessageSent        = "message_sent"
	EventConversationRead   = "conversation_read"
	EventUserTyping         = "user_typing"
	EventError              = "error"
)

// Query parameter keys
const (
	QueryToken      = "token"
	QuerySendId     = "send_id"
	QueryPlatformId = "platform_id"
)

// Handshake headers
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)

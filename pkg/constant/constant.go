package constant

// User roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Notification types
const (
	NotificationTypeMention  = "mention"
	NotificationTypeReply    = "reply"
	NotificationTypeComment  = "comment"
	NotificationTypeUpvote   = "upvote"
	NotificationTypeDownvote = "downvote"
)

// IsVoteNotification reports whether a notification type is produced by voting
func IsVoteNotification(t string) bool {
	return t == NotificationTypeUpvote || t == NotificationTypeDownvote
}

// IsValidNotificationType reports whether t is a known notification type
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeMention, NotificationTypeReply, NotificationTypeComment,
		NotificationTypeUpvote, NotificationTypeDownvote:
		return true
	default:
		return false
	}
}

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWindows = 3
	PlatformIdMacOS   = 4
	PlatformIdWeb     = 5
)

// PlatformIdToName converts platform Id to name
func PlatformIdToName(platformId int) string {
	switch platformId {
	case PlatformIdIOS:
		return "iOS"
	case PlatformIdAndroid:
		return "Android"
	case PlatformIdWindows:
		return "Windows"
	case PlatformIdMacOS:
		return "macOS"
	case PlatformIdWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// Room name prefixes. A connection is in exactly one user room and any number of conversation rooms.
const (
	UserRoomPrefix         = "user:"
	ConversationRoomPrefix = "conversation:"
)

// UserRoom returns the inbox room of a user
func UserRoom(userId string) string { return UserRoomPrefix + userId }

// ConversationRoom returns the fan-out room of a conversation
func ConversationRoom(conversationId string) string { return ConversationRoomPrefix + conversationId }

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken           = "token:%s:%d" // token:{user_id}:{platform_id}
	redisKeyOnline          = "online:%s"   // online:{user_id}
	redisKeySeqConversation = "seq:conv:%s" // seq:conv:{conversation_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "devcircle:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string           { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string          { return redisKeyPrefix + redisKeyOnline }
func RedisKeySeqConversation() string { return redisKeyPrefix + redisKeySeqConversation }

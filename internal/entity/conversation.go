package entity

// Conversation represents a direct or group conversation
type Conversation struct {
	Id           string                     `json:"id" gorm:"column:id;primaryKey;size:64"`
	IsGroup      bool                       `json:"is_group" gorm:"column:is_group"`
	PairKey      *string                    `json:"-" gorm:"column:pair_key;size:160;uniqueIndex"`
	CreatedAt    int64                      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    int64                      `json:"updated_at" gorm:"column:updated_at;index"`
	Participants []*ConversationParticipant `json:"participants,omitempty" gorm:"foreignKey:ConversationId;references:Id"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ParticipantIds returns the user ids of the loaded participants
func (c *Conversation) ParticipantIds() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserId)
	}
	return ids
}

// IsDirectBetween reports whether c is a non-group conversation whose participants are exactly {userA, userB}
func (c *Conversation) IsDirectBetween(userA, userB string) bool {
	if c.IsGroup || len(c.Participants) != 2 {
		return false
	}
	seenA, seenB := false, false
	for _, p := range c.Participants {
		switch p.UserId {
		case userA:
			seenA = true
		case userB:
			seenB = true
		}
	}
	return seenA && seenB
}

// ConversationParticipant links a user to a conversation
type ConversationParticipant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;size:64;uniqueIndex:uk_conv_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;size:64;uniqueIndex:uk_conv_user;index"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at"`
}

// TableName returns the table name for ConversationParticipant
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

// ConversationInfo represents conversation info for API response
type ConversationInfo struct {
	ConversationId string      `json:"conversation_id"`
	IsGroup        bool        `json:"is_group"`
	Participants   []*UserInfo `json:"participants"`
	UnreadCount    int64       `json:"unread_count"`
	MaxSeq         int64       `json:"max_seq"`
	CreatedAt      int64       `json:"created_at"`
	UpdatedAt      int64       `json:"updated_at"`
}

package entity

// Message represents a message
type Message struct {
	Id             int64   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string  `json:"conversation_id" gorm:"column:conversation_id;size:64;index:idx_conv_seq;uniqueIndex:uk_conv_sender_client_msg"`
	Seq            int64   `json:"seq" gorm:"column:seq;index:idx_conv_seq"`
	ClientMsgId    *string `json:"client_msg_id" gorm:"column:client_msg_id;size:64;uniqueIndex:uk_conv_sender_client_msg"`
	SenderId       string  `json:"sender_id" gorm:"column:sender_id;size:64;uniqueIndex:uk_conv_sender_client_msg"`
	ReceiverId     *string `json:"receiver_id" gorm:"column:receiver_id;size:64"`
	Content        string  `json:"content" gorm:"column:content;type:text"`
	CreatedAt      int64   `json:"created_at" gorm:"column:created_at"`
	ReadAt         *int64  `json:"read_at" gorm:"column:read_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageInfo represents message info for API response and real-time push
type MessageInfo struct {
	Id             int64     `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	ClientMsgId    string    `json:"client_msg_id,omitempty"`
	SenderId       string    `json:"sender_id"`
	ReceiverId     string    `json:"receiver_id,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      int64     `json:"created_at"`
	ReadAt         *int64    `json:"read_at"`
	Sender         *UserInfo `json:"sender,omitempty"`
}

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	info := &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		Seq:            m.Seq,
		SenderId:       m.SenderId,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
	if m.ClientMsgId != nil {
		info.ClientMsgId = *m.ClientMsgId
	}
	if m.ReceiverId != nil {
		info.ReceiverId = *m.ReceiverId
	}
	return info
}

// ReadReceipt describes a bulk read transition of a conversation
type ReadReceipt struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	ReadAt         int64  `json:"read_at"`
	Count          int64  `json:"count"`
}

package entity

// SeqConversation is the durable high-water mark of a conversation's message sequence
type SeqConversation struct {
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;primaryKey;size:64"`
	MaxSeq         int64  `json:"max_seq" gorm:"column:max_seq"`
}

// TableName returns the table name for SeqConversation
func (SeqConversation) TableName() string {
	return "seq_conversations"
}

package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/devcircle/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// WSRequest is the envelope of every client frame
type WSRequest struct {
	Event       string          `json:"event"`
	MsgIncr     string          `json:"msg_incr"`
	OperationId string          `json:"operation_id"`
	Data        json.RawMessage `json:"data"`
}

// WSResponse is the envelope of every server frame
type WSResponse struct {
	Event       string      `json:"event"`
	MsgIncr     string      `json:"msg_incr,omitempty"`
	OperationId string      `json:"operation_id,omitempty"`
	ErrCode     int         `json:"err_code"`
	ErrMsg      string      `json:"err_msg,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// Validator is implemented by every client payload
type Validator interface {
	Validate() error
}

// scalarPayload is a payload that may also be sent as a bare JSON string naming its only id
type scalarPayload interface {
	setScalar(id string)
}

// GetOrCreateConversationReq asks for the direct conversation with another user
type GetOrCreateConversationReq struct {
	OtherUserId string `json:"other_user_id"`
}

func (r *GetOrCreateConversationReq) setScalar(id string) { r.OtherUserId = id }

func (r *GetOrCreateConversationReq) Validate() error {
	r.OtherUserId = strings.TrimSpace(r.OtherUserId)
	if r.OtherUserId == "" {
		return errcode.ErrInvalidParam
	}
	return nil
}

// ConversationReq names a conversation; used by join, leave and mark-read
type ConversationReq struct {
	ConversationId string `json:"conversation_id"`
}

func (r *ConversationReq) setScalar(id string) { r.ConversationId = id }

func (r *ConversationReq) Validate() error {
	r.ConversationId = strings.TrimSpace(r.ConversationId)
	if r.ConversationId == "" {
		return errcode.ErrInvalidParam
	}
	return nil
}

// SendMessageReq is the payload of send_message
type SendMessageReq struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
	ReceiverId     string `json:"receiver_id,omitempty"`
	ClientMsgId    string `json:"client_msg_id,omitempty"`
}

func (r *SendMessageReq) Validate() error {
	if strings.TrimSpace(r.ConversationId) == "" {
		return errcode.ErrInvalidParam
	}
	if strings.TrimSpace(r.Content) == "" {
		return errcode.ErrEmptyContent
	}
	return nil
}

// TypingReq is the payload of typing
type TypingReq struct {
	ConversationId string `json:"conversation_id"`
	IsTyping       *bool  `json:"is_typing"`
}

func (r *TypingReq) Validate() error {
	if strings.TrimSpace(r.ConversationId) == "" || r.IsTyping == nil {
		return errcode.ErrInvalidParam
	}
	return nil
}

// MarkNotificationReadReq is the payload of mark_notification_read
type MarkNotificationReadReq struct {
	NotificationId string `json:"notification_id"`
}

func (r *MarkNotificationReadReq) setScalar(id string) { r.NotificationId = id }

func (r *MarkNotificationReadReq) Validate() error {
	if strings.TrimSpace(r.NotificationId) == "" {
		return errcode.ErrInvalidParam
	}
	return nil
}

// ConversationReadyResp answers get_or_create_conversation
type ConversationReadyResp struct {
	ConversationId string                   `json:"conversation_id"`
	OtherUser      *entity.UserInfo         `json:"other_user"`
	Conversation   *entity.ConversationInfo `json:"conversation,omitempty"`
}

// ConversationResp acknowledges a join or leave
type ConversationResp struct {
	ConversationId string `json:"conversation_id"`
}

// UserTypingEvent is broadcast to the other members of a conversation room
type UserTypingEvent struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Username       string `json:"username"`
	IsTyping       bool   `json:"is_typing"`
}

// ConnectedEvent is the first frame of an admitted connection
type ConnectedEvent struct {
	ConnId   string           `json:"conn_id"`
	Identity *entity.Identity `json:"identity"`
}

// Encode encodes v as a JSON frame
func Encode(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

// Decode decodes a JSON frame into v
func Decode(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}

// decodePayload decodes and validates the data field of a request. Decoder
// details are logged, never returned to the client.
func decodePayload(ctx context.Context, req *WSRequest, v Validator) error {
	data := req.Data
	if len(data) == 0 {
		return errcode.ErrInvalidProtocol
	}

	var err error
	if s, ok := v.(scalarPayload); ok && data[0] == '"' {
		var id string
		if err = Decode(data, &id); err == nil {
			s.setScalar(id)
		}
	} else {
		err = Decode(data, v)
	}
	if err != nil {
		log.CtxDebug(ctx, "decode payload failed: event=%s, error=%v", req.Event, err)
		return errcode.ErrInvalidProtocol
	}
	return v.Validate()
}

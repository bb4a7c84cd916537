package errcode

import (
	"errors"
	"fmt"
)

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether target carries the same code, so wrapped errors still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// As extracts an *Error from err, falling back to ErrInternalServer for foreign errors.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrInternalServer = New(1002, "internal server error")
	ErrUnauthorized   = New(1003, "unauthorized")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrTokenMismatch = New(2004, "token user mismatch")
	ErrUserNotFound  = New(2006, "user not found")
	ErrUserExists    = New(2007, "user already exists")
	ErrPasswordWrong = New(2008, "password wrong")

	// Conversation errors (3xxx)
	ErrConvNotFound     = New(3001, "conversation not found")
	ErrNotParticipant   = New(3002, "not a participant of this conversation")
	ErrSelfConversation = New(3003, "cannot start a conversation with yourself")
	ErrConvCreateFailed = New(3004, "conversation create failed")
	ErrNotJoinedRoom    = New(3005, "not joined to this conversation")

	// Message errors (4xxx)
	ErrEmptyContent    = New(4002, "message content is empty")
	ErrContentTooLong  = New(4003, "message content too long")
	ErrInvalidReceiver = New(4004, "receiver is not a participant of this conversation")
	ErrSeqAllocFailed  = New(4005, "seq allocation failed")
	ErrSendFailed      = New(4006, "message send failed")
	ErrPullFailed      = New(4007, "message pull failed")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrUnknownEvent    = New(5004, "unknown event")

	// Notification errors (6xxx)
	ErrNotificationNotFound = New(6001, "notification not found")
	ErrNotVoteNotification  = New(6002, "only vote notifications can be deleted")
)

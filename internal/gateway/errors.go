package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed       = errors.New("connection closed")
	ErrWriteChannelFull = errors.New("write channel full")
	ErrPushQueueFull    = errors.New("push queue full")
	ErrPanic            = errors.New("panic error")
)

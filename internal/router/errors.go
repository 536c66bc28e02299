package router

import "errors"

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrMissingSender      = errors.New("message has no sender")
)

package hub

import "errors"

var (
	ErrHubAlreadyRunning  = errors.New("hub is already running")
	ErrHubNotRunning      = errors.New("hub is not running")
	ErrSenderNotConnected = errors.New("sender not connected")
	ErrMessageChannelFull = errors.New("message channel is full")
	ErrNilMessage         = errors.New("message cannot be nil")
)

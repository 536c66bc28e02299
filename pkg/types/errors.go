package types

import "errors"

var (
	ErrInvalidParticipantID = errors.New("participant ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRoomID        = errors.New("room ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidMessageType   = errors.New("invalid message type")
	ErrInvalidContent       = errors.New("invalid JSON content")
	ErrContentTooLarge      = errors.New("message content exceeds 4KB limit")
	ErrMissingText          = errors.New("message content requires a text field")
	ErrMissingTarget        = errors.New("message content requires a target field")
)

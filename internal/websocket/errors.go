package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrWriteTimeout     = errors.New("websocket: write timed out")
	ErrWriteBufferFull  = errors.New("websocket: outbound queue full, event dropped")
	ErrInvalidJSON      = errors.New("websocket: event is not valid JSON")

	ErrNilConnection = errors.New("websocket: nil connection")
	// ErrConnectionNotAuthenticated is returned when a connection is
	// registered before it has a room and participant.
	ErrConnectionNotAuthenticated = errors.New("websocket: connection has no room or participant")
	ErrInvalidParameters          = errors.New("websocket: room_id and participant_id are required")
)

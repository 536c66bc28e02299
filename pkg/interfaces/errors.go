package interfaces

import "errors"

var (
	// ErrSessionNotFound means no live game owns the room.
	ErrSessionNotFound = errors.New("no game running in room")
	// ErrGameNotFound means the history store has no record of the game id.
	ErrGameNotFound = errors.New("game not found in history")
)

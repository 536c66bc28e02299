package session

import (
	"errors"

	"impostor/pkg/interfaces"
)

var (
	ErrRoomBusy        = errors.New("room already has a running game")
	ErrRegistryClosed  = errors.New("session registry is shut down")
	ErrSessionNotFound = interfaces.ErrSessionNotFound
)

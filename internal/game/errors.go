package game

import (
	"errors"
	"fmt"
)

// Configuration violations. A start request failing any of these is refused
// before a controller exists.
var (
	ErrInvalidConfig        = errors.New("invalid session configuration")
	ErrTooFewParticipants   = fmt.Errorf("%w: at least two participants are required", ErrInvalidConfig)
	ErrTooManyParticipants  = fmt.Errorf("%w: too many participants", ErrInvalidConfig)
	ErrInvalidImpostorCount = fmt.Errorf("%w: impostor count must be at least one", ErrInvalidConfig)
	ErrTooManyImpostors     = fmt.Errorf("%w: impostor count must be below participant count", ErrInvalidConfig)
	ErrInvalidRounds        = fmt.Errorf("%w: total rounds must be at least one", ErrInvalidConfig)
	ErrInvalidDuration      = fmt.Errorf("%w: phase durations must be positive", ErrInvalidConfig)
	ErrInvalidParticipant   = fmt.Errorf("%w: invalid participant id", ErrInvalidConfig)
	ErrDuplicateParticipant = fmt.Errorf("%w: duplicate participant id", ErrInvalidConfig)
	ErrMissingDependency    = fmt.Errorf("%w: item provider and notifier are required", ErrInvalidConfig)
)

// Protocol violations: expected races such as a stale client after game end.
var (
	ErrNotParticipant = errors.New("actor is not a participant of this session")
	ErrSessionClosed  = errors.New("session is closed")
)

// Phase violations: the actor is valid but the action does not fit right now.
var (
	ErrWrongPhase     = errors.New("action not allowed in current phase")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrChatLocked     = errors.New("chat is locked")
	ErrEliminated     = errors.New("eliminated participants cannot act")
	ErrInvalidTarget  = errors.New("invalid vote target")
	ErrEmptyClue      = errors.New("clue cannot be empty")
	ErrClueTooLong    = errors.New("clue is too long")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrAlreadyStarted = errors.New("session already started")
)

// IsProtocolViolation reports errors that are logged at debug level and
// never echoed to the actor.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrNotParticipant) || errors.Is(err, ErrSessionClosed)
}

// IsPhaseViolation reports errors that are echoed to the actor as a soft notice.
func IsPhaseViolation(err error) bool {
	for _, target := range []error{
		ErrWrongPhase, ErrNotYourTurn, ErrChatLocked, ErrEliminated, ErrInvalidTarget,
		ErrEmptyClue, ErrClueTooLong, ErrEmptyMessage, ErrMessageTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package statemachine

import "errors"

var (
	ErrIllegalTransition  = errors.New("transition not allowed from current phase")
	ErrGuardFailed        = errors.New("transition guard not satisfied")
	ErrActionNotAllowed   = errors.New("action not allowed in current phase")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotAlive           = errors.New("participant has been eliminated")
	ErrNotCurrentSpeaker  = errors.New("participant does not hold the turn")
	ErrNoParticipants     = errors.New("machine requires participants")
	ErrDuplicateID        = errors.New("duplicate participant id")
)

var ErrInvalidTarget = errors.New("vote target is not an eligible participant")

package interfaces

import "impostor/pkg/types"

// GameController is the validated entry surface of one live session.
type GameController interface {
	SubmitClue(participantID, text string) error
	CastVote(voterID, target string) error
	SendDiscussionMessage(participantID, text string) error
	SkipDiscussion(participantID string) error
	Snapshot(viewerID string) (*types.Snapshot, error)
	IsParticipant(participantID string) bool
}

// SessionRegistry resolves rooms to their live session.
type SessionRegistry interface {
	// Lookup returns ErrSessionNotFound when no live session owns the room.
	Lookup(roomID string) (GameController, error)
}

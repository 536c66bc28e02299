package game

import (
	"fmt"
	"time"
)

// Options are the tunables of one session.
type Options struct {
	AssignmentDuration time.Duration
	TurnDuration       time.Duration
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	ResultDuration     time.Duration

	TotalRounds     int
	ImpostorCount   int
	MinParticipants int
	MaxParticipants int // 0 means unlimited

	MaxClueLength    int
	MaxMessageLength int
	PublicVoting     bool

	// PersistTimeout bounds each history write.
	PersistTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		AssignmentDuration: 5 * time.Second,
		TurnDuration:       30 * time.Second,
		DiscussionDuration: 60 * time.Second,
		VotingDuration:     45 * time.Second,
		ResultDuration:     5 * time.Second,
		TotalRounds:        3,
		ImpostorCount:      1,
		MinParticipants:    2,
		MaxParticipants:    12,
		MaxClueLength:      60,
		MaxMessageLength:   300,
		PersistTimeout:     5 * time.Second,
	}
}

// Validate checks the options against the number of participants.
func (o Options) Validate(participantCount int) error {
	minimum := o.MinParticipants
	if minimum < 2 {
		minimum = 2
	}
	if participantCount < minimum {
		return fmt.Errorf("%w (got %d, need %d)", ErrTooFewParticipants, participantCount, minimum)
	}
	if o.MaxParticipants > 0 && participantCount > o.MaxParticipants {
		return fmt.Errorf("%w (got %d, max %d)", ErrTooManyParticipants, participantCount, o.MaxParticipants)
	}
	if o.ImpostorCount < 1 {
		return ErrInvalidImpostorCount
	}
	if o.ImpostorCount >= participantCount {
		return fmt.Errorf("%w (%d impostors for %d participants)", ErrTooManyImpostors, o.ImpostorCount, participantCount)
	}
	if o.TotalRounds < 1 {
		return ErrInvalidRounds
	}

	for _, d := range []time.Duration{
		o.AssignmentDuration, o.TurnDuration, o.DiscussionDuration, o.VotingDuration, o.ResultDuration,
	} {
		if d <= 0 {
			return ErrInvalidDuration
		}
	}
	return nil
}

package game

import (
	"context"
	"strings"
	"unicode/utf8"

	"impostor/internal/logging"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

// act runs an action on the session goroutine and handles rejections.
// Protocol violations are only logged; phase violations also earn the
// actor an action_rejected notice.
func (c *Controller) act(participantID, action string, fn func() error) error {
	err := c.call(fn)
	switch {
	case err == nil:
		return nil
	case IsProtocolViolation(err):
		logging.Debugf("Ignoring %s from %s in room %s: %v", action, participantID, c.roomID, err)
	case IsPhaseViolation(err):
		logging.Debugf("Rejected %s from %s in room %s: %v", action, participantID, c.roomID, err)
		c.sendTo(participantID, types.EventActionRejected, types.ActionRejected{
			Action: action,
			Reason: err.Error(),
		})
	}
	return err
}

// validateActor checks membership, phase and liveness, in that order.
func (c *Controller) validateActor(participantID string, action types.Action) error {
	if !c.IsParticipant(participantID) {
		return ErrNotParticipant
	}
	if c.closed {
		return ErrSessionClosed
	}
	if !c.machine.CanPerform(action) {
		return ErrWrongPhase
	}

	p, _ := c.machine.Participant(participantID)
	if !p.Alive {
		return ErrEliminated
	}
	return nil
}

// SubmitClue accepts a clue from the participant holding the turn. An
// accepted clue ends the turn early and cancels its timer.
func (c *Controller) SubmitClue(participantID, text string) error {
	return c.act(participantID, string(types.ActionSubmitClue), func() error {
		if err := c.validateActor(participantID, types.ActionSubmitClue); err != nil {
			return err
		}
		if !c.gate.CanSendClue(participantID) {
			return ErrNotYourTurn
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyClue
		}
		if utf8.RuneCountInString(text) > c.opts.MaxClueLength {
			return ErrClueTooLong
		}

		c.cancelTimer()
		c.recordClue(participantID, text, false)
		return nil
	})
}

// SendDiscussionMessage relays free chat while the discussion channel is open.
func (c *Controller) SendDiscussionMessage(participantID, text string) error {
	return c.act(participantID, string(types.ActionSendDiscussionMessage), func() error {
		if !c.IsParticipant(participantID) {
			return ErrNotParticipant
		}
		if !c.gate.CanSendDiscussionMessage(participantID) {
			return ErrChatLocked
		}
		if err := c.validateActor(participantID, types.ActionSendDiscussionMessage); err != nil {
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyMessage
		}
		if utf8.RuneCountInString(text) > c.opts.MaxMessageLength {
			return ErrMessageTooLong
		}

		p, _ := c.machine.Participant(participantID)
		message := types.DiscussionMessage{
			ParticipantID: p.ID,
			Name:          p.Name,
			Text:          text,
			Timestamp:     c.clock.Now(),
		}
		c.discussion = append(c.discussion, message)
		c.broadcast(types.EventDiscussionMessage, message)
		return nil
	})
}

// SkipDiscussion registers a request to end the discussion early. Once more
// than half of the living participants have asked, voting starts at once.
func (c *Controller) SkipDiscussion(participantID string) error {
	return c.act(participantID, types.MessageTypeSkipDiscussion, func() error {
		if err := c.validateActor(participantID, types.ActionSendDiscussionMessage); err != nil {
			return err
		}
		if c.skipRequests[participantID] {
			return nil
		}
		c.skipRequests[participantID] = true

		needed := len(c.machine.Alive())/2 + 1
		c.broadcast(types.EventSkipProgress, types.SkipProgress{
			Requested: len(c.skipRequests),
			Needed:    needed,
		})

		if len(c.skipRequests) >= needed {
			c.cancelTimer()
			c.startVotingPhase()
		}
		return nil
	})
}

// CastVote records or replaces a ballot. target is a living participant
// other than the voter, or types.SkipVote. The last outstanding ballot
// cancels the voting timer and tallies immediately.
func (c *Controller) CastVote(voterID, target string) error {
	return c.act(voterID, string(types.ActionCastVote), func() error {
		if err := c.validateActor(voterID, types.ActionCastVote); err != nil {
			return err
		}

		target = strings.TrimSpace(target)
		if target != types.SkipVote {
			candidate, ok := c.machine.Participant(target)
			if !ok || !candidate.Alive || target == voterID {
				return ErrInvalidTarget
			}
		}

		if err := c.machine.CastVote(voterID, target); err != nil {
			return ErrInvalidTarget
		}

		vote := types.Vote{
			VoterID:   voterID,
			TargetID:  target,
			Round:     c.machine.Round(),
			Timestamp: c.clock.Now(),
		}
		c.persist("vote", func(ctx context.Context, store interfaces.HistoryStore) error {
			return store.StoreVote(ctx, c.gameID, vote)
		})

		c.broadcastTally()

		if c.machine.AllVoted() {
			c.cancelTimer()
			c.tallyVotes()
		}
		return nil
	})
}

func (c *Controller) broadcastTally() {
	votes := c.machine.Votes()
	counts := make(map[string]int)
	for _, target := range votes {
		if target != types.SkipVote {
			counts[target]++
		}
	}

	update := types.VoteTallyUpdated{
		Cast:     len(votes),
		Expected: len(c.machine.Alive()),
		Counts:   counts,
	}
	if c.opts.PublicVoting {
		update.Ballots = votes
	}
	c.broadcast(types.EventVoteTallyUpdated, update)
}

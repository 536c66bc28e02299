package game

import (
	"context"
	"log"
	"time"

	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

// Start leaves Idle: the first item is drawn, roles are sent privately and
// the assignment timer starts.
func (c *Controller) Start() error {
	return c.call(func() error {
		if c.started {
			return ErrAlreadyStarted
		}
		if err := c.machine.Transition(types.PhaseAssignment); err != nil {
			return err
		}

		c.started = true
		c.startedAt = c.clock.Now()
		c.item = c.provider.PickItem()

		record := c.gameRecord()
		c.persist("game", func(ctx context.Context, store interfaces.HistoryStore) error {
			return store.CreateGame(ctx, record)
		})

		log.Printf("Game %s started in room %s (%d rounds)", c.gameID, c.roomID, c.machine.TotalRounds())
		c.enterAssignment()
		return nil
	})
}

func (c *Controller) gameRecord() *types.GameRecord {
	var impostors []string
	for _, p := range c.machine.Participants() {
		if p.IsImpostor {
			impostors = append(impostors, p.ID)
		}
	}

	return &types.GameRecord{
		ID:               c.gameID,
		RoomID:           c.roomID,
		ItemWord:         c.item.Word,
		ItemCategory:     c.item.Category,
		ImpostorIDs:      impostors,
		ParticipantCount: len(c.roster),
		TotalRounds:      c.machine.TotalRounds(),
		StartedAt:        c.startedAt,
		Status:           "active",
	}
}

// announce records the phase clock and broadcasts phase_changed.
func (c *Controller) announce(d time.Duration) {
	now := c.clock.Now()
	c.phaseStartedAt = now
	c.phaseDuration = d

	change := types.PhaseChanged{
		Phase:       c.machine.CurrentPhase(),
		Round:       c.machine.Round(),
		TotalRounds: c.machine.TotalRounds(),
		DurationMS:  d.Milliseconds(),
	}
	if d > 0 {
		deadline := now.Add(d)
		change.Deadline = &deadline
	}
	c.broadcast(types.EventPhaseChanged, change)
}

func (c *Controller) enterAssignment() {
	c.announce(c.opts.AssignmentDuration)

	for _, p := range c.machine.Participants() {
		c.sendTo(p.ID, types.EventRoleAssigned, c.roleFor(p.IsImpostor))
	}

	c.arm(c.opts.AssignmentDuration, "assignment", c.startCluePhase)
}

func (c *Controller) startCluePhase() {
	if err := c.machine.Transition(types.PhaseCluesTurn); err != nil {
		return
	}
	c.gate.LockAll()
	c.announce(0)
	c.startNextTurn()
}

// startNextTurn hands the turn channel to the next living participant, or
// moves on to Discussion once everyone has spoken.
func (c *Controller) startNextTurn() {
	speaker, ok := c.machine.CurrentSpeaker()
	if !ok {
		c.startDiscussionPhase()
		return
	}

	c.gate.UnlockTurn(speaker.ID)
	c.broadcast(types.EventTurnChanged, types.TurnChanged{
		ParticipantID: speaker.ID,
		Name:          speaker.Name,
		TurnIndex:     c.machine.TurnIndex(),
		TurnCount:     len(c.machine.Alive()),
		DurationMS:    c.opts.TurnDuration.Milliseconds(),
	})

	speakerID := speaker.ID
	c.arm(c.opts.TurnDuration, "turn", func() {
		c.forfeitTurn(speakerID)
	})
}

// forfeitText is recorded for a speaker whose turn timer expired.
const forfeitText = "no response"

func (c *Controller) forfeitTurn(participantID string) {
	c.recordClue(participantID, forfeitText, true)
}

// recordClue appends the clue, closes the speaker's turn and advances.
func (c *Controller) recordClue(participantID, text string, forfeited bool) {
	clue, err := c.machine.SubmitClue(participantID, text, forfeited, c.clock.Now())
	if err != nil {
		log.Printf("Failed to record clue from %s in room %s: %v", participantID, c.roomID, err)
		return
	}

	c.broadcast(types.EventClueReceived, types.ClueReceived{Clue: clue})
	c.persist("clue", func(ctx context.Context, store interfaces.HistoryStore) error {
		return store.StoreClue(ctx, c.gameID, clue)
	})

	c.gate.LockTurn()
	c.startNextTurn()
}

func (c *Controller) startDiscussionPhase() {
	if err := c.machine.Transition(types.PhaseDiscussion); err != nil {
		return
	}
	c.discussion = nil
	c.skipRequests = make(map[string]bool)

	c.gate.UnlockDiscussion()
	c.announce(c.opts.DiscussionDuration)
	c.arm(c.opts.DiscussionDuration, "discussion", c.startVotingPhase)
}

func (c *Controller) startVotingPhase() {
	if err := c.machine.Transition(types.PhaseVoting); err != nil {
		return
	}
	c.gate.LockAll()
	c.announce(c.opts.VotingDuration)
	c.arm(c.opts.VotingDuration, "voting", func() {
		c.machine.MarkVotingExpired()
		c.tallyVotes()
	})
}

// tallyVotes resolves the voting phase, applies the elimination and decides
// whether the game continues.
func (c *Controller) tallyVotes() {
	votes := c.machine.Votes()
	result := Tally(votes, func(id string) bool {
		p, ok := c.machine.Participant(id)
		return ok && p.Alive
	})

	if err := c.machine.Transition(types.PhaseResult); err != nil {
		return
	}
	c.announce(c.opts.ResultDuration)

	roundResult := &types.RoundResult{
		GameID:    c.gameID,
		Round:     c.machine.Round(),
		ItemWord:  c.item.Word,
		Reason:    result.Reason,
		Tally:     result.Counts,
		Timestamp: c.clock.Now(),
	}

	if result.Eliminated != "" {
		if err := c.machine.Eliminate(result.Eliminated); err != nil {
			log.Printf("Failed to eliminate %s in room %s: %v", result.Eliminated, c.roomID, err)
		} else {
			p, _ := c.machine.Participant(result.Eliminated)
			roundResult.EliminatedID = p.ID
			roundResult.WasImpostor = p.IsImpostor
			c.broadcast(types.EventPlayerEliminated, types.PlayerEliminated{
				ParticipantID: p.ID,
				Name:          p.Name,
				WasImpostor:   p.IsImpostor,
				Votes:         result.TopCount,
			})
		}
	} else {
		c.broadcast(types.EventNoElimination, types.NoElimination{Reason: result.Reason})
	}

	c.persist("round result", func(ctx context.Context, store interfaces.HistoryStore) error {
		return store.StoreRoundResult(ctx, roundResult)
	})

	impostors, crew := c.machine.AliveCounts()
	winner, reason := CheckWin(WinState{
		AliveImpostors: impostors,
		AliveCrew:      crew,
		Round:          c.machine.Round(),
		TotalRounds:    c.machine.TotalRounds(),
	})
	if winner != types.WinnerNone {
		c.machine.SetWinner(winner, reason)
	}

	c.arm(c.opts.ResultDuration, "result", func() {
		if w, _ := c.machine.Winner(); w != types.WinnerNone {
			c.endGame()
			return
		}
		c.nextRound()
	})
}

// nextRound starts a new round with a freshly drawn item. Roles persist.
func (c *Controller) nextRound() {
	if err := c.machine.Transition(types.PhaseNextRound); err != nil {
		return
	}
	c.announce(0)

	if err := c.machine.Transition(types.PhaseAssignment); err != nil {
		return
	}
	c.item = c.provider.PickItem()
	c.enterAssignment()
}

func (c *Controller) endGame() {
	if err := c.machine.Transition(types.PhaseGameEnd); err != nil {
		return
	}
	c.gate.LockAll()
	c.announce(0)

	winner, reason := c.machine.Winner()
	var impostors []types.ParticipantRef
	for _, p := range c.machine.Participants() {
		if p.IsImpostor {
			impostors = append(impostors, types.ParticipantRef{ID: p.ID, Name: p.Name})
		}
	}

	rounds := c.machine.Round()
	c.broadcast(types.EventGameEnded, types.GameEnded{
		Winner:       winner,
		Reason:       reason,
		Impostors:    impostors,
		Item:         c.item,
		Eliminations: c.machine.Eliminations(),
		Rounds:       rounds,
	})

	endedAt := c.clock.Now()
	c.persist("game end", func(ctx context.Context, store interfaces.HistoryStore) error {
		return store.FinishGame(ctx, c.gameID, winner, reason, rounds, endedAt)
	})

	log.Printf("Game %s in room %s ended: %s wins (%s)", c.gameID, c.roomID, winner, reason)
	c.finish()
}

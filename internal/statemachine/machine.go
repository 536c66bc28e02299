// Package statemachine holds the canonical phase of one game session together
// with the round state that phase transitions reset: turn cursor, clue log,
// vote ledger and elimination history.
//
// A Machine is owned by a single session controller and is not safe for
// concurrent use.
package statemachine

import (
	"fmt"
	"log"
	"time"

	"impostor/pkg/types"
)

type Machine struct {
	roomID      string
	phase       types.Phase
	round       int
	totalRounds int

	participants []*types.Participant
	index        map[string]*types.Participant

	cursor        int
	clues         []types.Clue
	votes         map[string]string
	votingExpired bool
	eliminations  []string

	winner    types.Winner
	winReason string
}

// New creates a machine in the Idle phase at round one. Every participant
// starts alive with cleared per-round flags.
func New(roomID string, participants []types.Participant, totalRounds int) (*Machine, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	m := &Machine{
		roomID:       roomID,
		phase:        types.PhaseIdle,
		round:        1,
		totalRounds:  totalRounds,
		participants: make([]*types.Participant, 0, len(participants)),
		index:        make(map[string]*types.Participant, len(participants)),
		votes:        make(map[string]string),
	}

	for _, p := range participants {
		if _, exists := m.index[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		record := p
		record.Alive = true
		record.HasClue = false
		record.HasVoted = false
		m.participants = append(m.participants, &record)
		m.index[record.ID] = &record
	}

	return m, nil
}

// Transition moves the machine to the requested phase. Requests outside the
// edge table or with an unmet guard are logged and leave all state untouched.
func (m *Machine) Transition(to types.Phase) error {
	if !CanTransition(m.phase, to) {
		log.Printf("Rejected transition %s -> %s in room %s: not in table", m.phase, to, m.roomID)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.phase, to)
	}

	if err := m.checkGuard(to); err != nil {
		log.Printf("Rejected transition %s -> %s in room %s: %v", m.phase, to, m.roomID, err)
		return err
	}

	m.phase = to
	m.enter(to)
	return nil
}

func (m *Machine) checkGuard(to types.Phase) error {
	switch {
	case m.phase == types.PhaseCluesTurn && to == types.PhaseDiscussion:
		if !m.AllCluesIn() {
			return fmt.Errorf("%w: clues outstanding", ErrGuardFailed)
		}
	case m.phase == types.PhaseVoting && to == types.PhaseResult:
		if !m.AllVoted() && !m.votingExpired {
			return fmt.Errorf("%w: votes outstanding and timer running", ErrGuardFailed)
		}
	case m.phase == types.PhaseResult && to == types.PhaseGameEnd:
		if m.winner == types.WinnerNone {
			return fmt.Errorf("%w: winner undecided", ErrGuardFailed)
		}
	case m.phase == types.PhaseResult && to == types.PhaseNextRound:
		if m.winner != types.WinnerNone {
			return fmt.Errorf("%w: winner already decided", ErrGuardFailed)
		}
	}
	return nil
}

// enter applies the per-phase resets after a successful transition.
func (m *Machine) enter(phase types.Phase) {
	switch phase {
	case types.PhaseCluesTurn:
		m.cursor = 0
		m.clues = nil
		for _, p := range m.participants {
			p.HasClue = false
		}
	case types.PhaseVoting:
		m.votes = make(map[string]string)
		m.votingExpired = false
		for _, p := range m.participants {
			p.HasVoted = false
		}
	case types.PhaseNextRound:
		m.round++
		m.cursor = 0
		m.clues = nil
		m.votes = make(map[string]string)
		m.votingExpired = false
		for _, p := range m.participants {
			p.HasClue = false
			p.HasVoted = false
		}
	}
}

func (m *Machine) CurrentPhase() types.Phase {
	return m.phase
}

// CanPerform reports whether the current phase accepts the action.
func (m *Machine) CanPerform(action types.Action) bool {
	phase, ok := actionPhases[action]
	return ok && phase == m.phase
}

func (m *Machine) Round() int {
	return m.round
}

func (m *Machine) TotalRounds() int {
	return m.totalRounds
}

// Participants returns copies of all participants in seat order.
func (m *Machine) Participants() []types.Participant {
	out := make([]types.Participant, len(m.participants))
	for i, p := range m.participants {
		out[i] = *p
	}
	return out
}

func (m *Machine) Participant(id string) (types.Participant, bool) {
	p, ok := m.index[id]
	if !ok {
		return types.Participant{}, false
	}
	return *p, true
}

// Alive returns the non-eliminated participants in seat order.
func (m *Machine) Alive() []types.Participant {
	out := make([]types.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		if p.Alive {
			out = append(out, *p)
		}
	}
	return out
}

// AliveCounts splits the living participants into impostors and crew.
func (m *Machine) AliveCounts() (impostors, crew int) {
	for _, p := range m.participants {
		if !p.Alive {
			continue
		}
		if p.IsImpostor {
			impostors++
		} else {
			crew++
		}
	}
	return impostors, crew
}

// CurrentSpeaker returns the participant at the turn cursor. The second
// result is false once the cursor has passed the last living participant.
func (m *Machine) CurrentSpeaker() (types.Participant, bool) {
	if m.phase != types.PhaseCluesTurn {
		return types.Participant{}, false
	}
	alive := m.Alive()
	if m.cursor >= len(alive) {
		return types.Participant{}, false
	}
	return alive[m.cursor], true
}

// TurnIndex is the zero-based cursor into the living participants.
func (m *Machine) TurnIndex() int {
	return m.cursor
}

// SubmitClue appends the current speaker's clue and advances the cursor.
func (m *Machine) SubmitClue(participantID, text string, forfeited bool, at time.Time) (types.Clue, error) {
	if m.phase != types.PhaseCluesTurn {
		return types.Clue{}, ErrActionNotAllowed
	}

	speaker, ok := m.CurrentSpeaker()
	if !ok || speaker.ID != participantID {
		return types.Clue{}, ErrNotCurrentSpeaker
	}

	clue := types.Clue{
		ParticipantID:   speaker.ID,
		ParticipantName: speaker.Name,
		Text:            text,
		Round:           m.round,
		Order:           len(m.clues) + 1,
		Forfeited:       forfeited,
		Timestamp:       at,
	}
	m.clues = append(m.clues, clue)
	m.index[participantID].HasClue = true
	m.cursor++

	return clue, nil
}

// Clues returns the clue log of the current round.
func (m *Machine) Clues() []types.Clue {
	out := make([]types.Clue, len(m.clues))
	copy(out, m.clues)
	return out
}

// AllCluesIn reports whether every living participant has a clue this round.
// Forfeited turns count as submitted.
func (m *Machine) AllCluesIn() bool {
	for _, p := range m.participants {
		if p.Alive && !p.HasClue {
			return false
		}
	}
	return true
}

// CastVote records or overwrites the voter's ballot. target is either a
// living participant other than the voter or types.SkipVote.
func (m *Machine) CastVote(voterID, target string) error {
	if m.phase != types.PhaseVoting {
		return ErrActionNotAllowed
	}

	voter, ok := m.index[voterID]
	if !ok {
		return ErrUnknownParticipant
	}
	if !voter.Alive {
		return ErrNotAlive
	}

	if target != types.SkipVote {
		candidate, ok := m.index[target]
		if !ok || !candidate.Alive || target == voterID {
			return ErrInvalidTarget
		}
	}

	m.votes[voterID] = target
	voter.HasVoted = true
	return nil
}

// Votes returns a copy of the ledger: voter -> target or skip.
func (m *Machine) Votes() map[string]string {
	out := make(map[string]string, len(m.votes))
	for voter, target := range m.votes {
		out[voter] = target
	}
	return out
}

func (m *Machine) VoteCount() int {
	return len(m.votes)
}

// AllVoted reports whether every living participant has a ballot.
func (m *Machine) AllVoted() bool {
	for _, p := range m.participants {
		if p.Alive && !p.HasVoted {
			return false
		}
	}
	return true
}

// MarkVotingExpired satisfies the Voting -> Result guard when the timer ran out.
func (m *Machine) MarkVotingExpired() {
	if m.phase == types.PhaseVoting {
		m.votingExpired = true
	}
}

// Eliminate marks a living participant as out. Only legal while in Result.
func (m *Machine) Eliminate(participantID string) error {
	if m.phase != types.PhaseResult {
		return ErrActionNotAllowed
	}
	p, ok := m.index[participantID]
	if !ok {
		return ErrUnknownParticipant
	}
	if !p.Alive {
		return ErrNotAlive
	}

	p.Alive = false
	m.eliminations = append(m.eliminations, participantID)
	return nil
}

// Eliminations returns eliminated participant ids in elimination order.
func (m *Machine) Eliminations() []string {
	out := make([]string, len(m.eliminations))
	copy(out, m.eliminations)
	return out
}

func (m *Machine) SetWinner(winner types.Winner, reason string) {
	m.winner = winner
	m.winReason = reason
}

func (m *Machine) Winner() (types.Winner, string) {
	return m.winner, m.winReason
}

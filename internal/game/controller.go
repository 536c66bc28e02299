// Package game runs one room's session: it owns the state machine and chat
// gate, arms the phase timers, applies participant actions and pushes every
// change out through the notifier.
//
// All session state is confined to a single goroutine. Public methods and
// timer callbacks submit closures to that goroutine, so timer expiry and an
// early completion can never both advance the same phase.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"impostor/internal/chatgate"
	"impostor/internal/logging"
	"impostor/internal/statemachine"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

// ItemProvider supplies the secret item and the impostor seats.
type ItemProvider interface {
	PickItem() types.Item
	PickImpostors(participantCount, impostorCount int) ([]int, error)
}

// Config describes one session. Store, Clock and OnEnd are optional.
type Config struct {
	RoomID       string
	Participants []types.Participant
	Options      Options

	Provider ItemProvider
	Notifier interfaces.Notifier
	Store    interfaces.HistoryStore
	Clock    Clock

	// OnEnd runs on the session goroutine once the session has finished,
	// either by reaching GameEnd or through Stop. It must not call back
	// into the controller.
	OnEnd func(roomID string, c *Controller)
}

// Summary is a cheap view of a session for listings.
type Summary struct {
	RoomID       string      `json:"room_id"`
	GameID       string      `json:"game_id"`
	Phase        types.Phase `json:"phase"`
	Round        int         `json:"round"`
	TotalRounds  int         `json:"total_rounds"`
	Participants int         `json:"participants"`
	Alive        int         `json:"alive"`
	StartedAt    time.Time   `json:"started_at"`
}

type Controller struct {
	roomID   string
	gameID   string
	opts     Options
	provider ItemProvider
	notifier interfaces.Notifier
	clock    Clock
	onEnd    func(roomID string, c *Controller)
	store    *persister

	// roster is immutable after construction and safe to read anywhere.
	roster map[string]struct{}

	events chan func()
	done   chan struct{}

	// Everything below is owned by the session goroutine.
	machine        *statemachine.Machine
	gate           *chatgate.Gate
	item           types.Item
	started        bool
	closed         bool
	startedAt      time.Time
	phaseStartedAt time.Time
	phaseDuration  time.Duration
	timer          Timer
	timerGen       uint64
	discussion     []types.DiscussionMessage
	skipRequests   map[string]bool
}

// NewController validates cfg and prepares an idle session. Every
// configuration violation is reported before any state or goroutine exists.
// Call Start to begin the first round.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Provider == nil || cfg.Notifier == nil {
		return nil, ErrMissingDependency
	}
	if !types.IsValidRoomID(cfg.RoomID) {
		return nil, fmt.Errorf("%w: invalid room id %q", ErrInvalidConfig, cfg.RoomID)
	}
	if err := cfg.Options.Validate(len(cfg.Participants)); err != nil {
		return nil, err
	}

	participants := make([]types.Participant, len(cfg.Participants))
	roster := make(map[string]struct{}, len(cfg.Participants))
	for i, p := range cfg.Participants {
		if !types.IsValidParticipantID(p.ID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParticipant, p.ID)
		}
		if _, exists := roster[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.ID)
		}
		roster[p.ID] = struct{}{}

		if strings.TrimSpace(p.Name) == "" {
			p.Name = p.ID
		}
		p.IsImpostor = false
		participants[i] = p
	}

	seats, err := cfg.Provider.PickImpostors(len(participants), cfg.Options.ImpostorCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, seat := range seats {
		if seat < 0 || seat >= len(participants) {
			return nil, fmt.Errorf("%w: impostor seat %d out of range", ErrInvalidConfig, seat)
		}
		participants[seat].IsImpostor = true
	}

	machine, err := statemachine.New(cfg.RoomID, participants, cfg.Options.TotalRounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	c := &Controller{
		roomID:       cfg.RoomID,
		gameID:       uuid.New().String(),
		opts:         cfg.Options,
		provider:     cfg.Provider,
		notifier:     cfg.Notifier,
		clock:        clock,
		onEnd:        cfg.OnEnd,
		store:        newPersister(cfg.Store, cfg.Options.PersistTimeout),
		roster:       roster,
		events:       make(chan func()),
		done:         make(chan struct{}),
		machine:      machine,
		skipRequests: make(map[string]bool),
	}
	c.gate = chatgate.New(func(change types.ChatGateChanged) {
		c.broadcast(types.EventChatGateChanged, change)
	})

	go c.run()

	log.Printf("Created game %s in room %s with %d participants", c.gameID, c.roomID, len(participants))
	return c, nil
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

// do hands fn to the session goroutine without waiting for it to run.
func (c *Controller) do(fn func()) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.events <- fn:
		return nil
	case <-c.done:
		return ErrSessionClosed
	}
}

// call runs fn on the session goroutine and waits for its result.
func (c *Controller) call(fn func() error) error {
	reply := make(chan error, 1)
	if err := c.do(func() { reply <- fn() }); err != nil {
		return err
	}
	return <-reply
}

// arm replaces the running phase timer. A callback whose generation no
// longer matches was cancelled after it fired and is ignored.
func (c *Controller) arm(d time.Duration, name string, fn func()) {
	c.cancelTimer()
	gen := c.timerGen

	c.timer = c.clock.AfterFunc(d, func() {
		_ = c.do(func() {
			if c.closed || gen != c.timerGen {
				logging.Debugf("Ignoring stale %s timer in room %s", name, c.roomID)
				return
			}
			c.timer = nil
			fn()
		})
	})
}

func (c *Controller) cancelTimer() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) broadcast(eventType types.EventType, payload interface{}) {
	c.notifier.Broadcast(c.roomID, types.NewEvent(eventType, c.roomID, payload))
}

func (c *Controller) sendTo(participantID string, eventType types.EventType, payload interface{}) {
	c.notifier.SendTo(c.roomID, participantID, types.NewEvent(eventType, c.roomID, payload))
}

func (c *Controller) persist(name string, run func(ctx context.Context, store interfaces.HistoryStore) error) {
	c.store.enqueue(name, run)
}

// finish releases the session exactly once.
func (c *Controller) finish() {
	if c.closed {
		return
	}
	c.cancelTimer()
	c.closed = true
	close(c.done)
	c.store.close()

	log.Printf("Game %s in room %s finished in phase %s", c.gameID, c.roomID, c.machine.CurrentPhase())

	if c.onEnd != nil {
		c.onEnd(c.roomID, c)
	}
}

// Stop aborts the session, cancelling any pending timer. Stopping an
// already finished session is a no-op.
func (c *Controller) Stop(reason string) error {
	err := c.call(func() error {
		c.cancelTimer()
		c.gate.LockAll()
		c.broadcast(types.EventSessionClosed, types.SessionClosed{Reason: reason})

		if c.started && c.machine.CurrentPhase() != types.PhaseGameEnd {
			rounds := c.machine.Round()
			endedAt := c.clock.Now()
			c.persist("aborted game", func(ctx context.Context, store interfaces.HistoryStore) error {
				return store.FinishGame(ctx, c.gameID, types.WinnerNone, types.WinReasonAborted, rounds, endedAt)
			})
		}

		c.finish()
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (c *Controller) RoomID() string {
	return c.roomID
}

func (c *Controller) GameID() string {
	return c.gameID
}

// Done is closed once the session has finished.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// HistoryFlushed is closed once every queued history write has completed.
func (c *Controller) HistoryFlushed() <-chan struct{} {
	return c.store.done
}

// IsParticipant reports roster membership, including eliminated participants.
func (c *Controller) IsParticipant(participantID string) bool {
	_, ok := c.roster[participantID]
	return ok
}

func (c *Controller) Summary() (Summary, error) {
	var summary Summary
	err := c.call(func() error {
		summary = Summary{
			RoomID:       c.roomID,
			GameID:       c.gameID,
			Phase:        c.machine.CurrentPhase(),
			Round:        c.machine.Round(),
			TotalRounds:  c.machine.TotalRounds(),
			Participants: len(c.roster),
			Alive:        len(c.machine.Alive()),
			StartedAt:    c.startedAt,
		}
		return nil
	})
	return summary, err
}

// Snapshot returns the public state of the session. Participants of the
// session also receive their own role; the item is only shown to crew.
func (c *Controller) Snapshot(viewerID string) (*types.Snapshot, error) {
	var snapshot *types.Snapshot
	err := c.call(func() error {
		snapshot = c.buildSnapshot(viewerID)
		return nil
	})
	return snapshot, err
}

func (c *Controller) buildSnapshot(viewerID string) *types.Snapshot {
	participants := c.machine.Participants()
	viewerIsImpostor := false
	for i := range participants {
		if participants[i].ID == viewerID {
			viewerIsImpostor = participants[i].IsImpostor
		}
		participants[i].IsImpostor = false
	}

	winner, _ := c.machine.Winner()
	discussion := make([]types.DiscussionMessage, len(c.discussion))
	copy(discussion, c.discussion)

	snapshot := &types.Snapshot{
		RoomID:         c.roomID,
		GameID:         c.gameID,
		Phase:          c.machine.CurrentPhase(),
		Round:          c.machine.Round(),
		TotalRounds:    c.machine.TotalRounds(),
		PhaseStartedAt: c.phaseStartedAt,
		PhaseDuration:  c.phaseDuration.Milliseconds(),
		Participants:   participants,
		CurrentSpeaker: c.gate.Speaker(),
		Clues:          c.machine.Clues(),
		Discussion:     discussion,
		VotesCast:      c.machine.VoteCount(),
		Eliminations:   c.machine.Eliminations(),
		Winner:         winner,
	}

	if c.started && c.IsParticipant(viewerID) {
		snapshot.Role = c.roleFor(viewerIsImpostor)
	}
	return snapshot
}

func (c *Controller) roleFor(isImpostor bool) *types.RoleAssignment {
	role := &types.RoleAssignment{
		Round:      c.machine.Round(),
		IsImpostor: isImpostor,
	}
	if !isImpostor {
		item := c.item
		role.Item = &item
	}
	return role
}

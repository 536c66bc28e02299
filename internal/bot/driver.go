// Package bot plays simulated participants. A Driver sits between a game
// and the real notifier: it forwards every event and reacts to the ones
// addressed to its participants by calling back into the game after a
// short think time.
package bot

import (
	"math/rand"
	"sync"
	"time"

	"impostor/internal/game"
	"impostor/internal/logging"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

// impostorClues are used by simulated impostors, who never see the item.
var impostorClues = []string{"classic", "familiar", "everyday", "interesting", "popular", "useful"}

type botState struct {
	isImpostor bool
	item       *types.Item
	alive      bool
}

type Driver struct {
	next  interfaces.Notifier
	clock game.Clock
	delay time.Duration

	mu    sync.Mutex
	ctrl  interfaces.GameController
	bots  map[string]*botState
	rng   *rand.Rand
	ended bool
}

// NewDriver plays the participants in ids and forwards everything to next.
func NewDriver(next interfaces.Notifier, ids []string, clock game.Clock, delay time.Duration) *Driver {
	if clock == nil {
		clock = game.RealClock{}
	}

	bots := make(map[string]*botState, len(ids))
	for _, id := range ids {
		bots[id] = &botState{alive: true}
	}

	return &Driver{
		next:  next,
		clock: clock,
		delay: delay,
		bots:  bots,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Attach sets the game the bots act on. It must be called before the game starts.
func (d *Driver) Attach(ctrl interfaces.GameController) {
	d.mu.Lock()
	d.ctrl = ctrl
	d.mu.Unlock()
}

// IsBot reports whether the driver plays participantID.
func (d *Driver) IsBot(participantID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.bots[participantID]
	return ok
}

func (d *Driver) Broadcast(roomID string, event *types.Event) {
	if d.next != nil {
		d.next.Broadcast(roomID, event)
	}
	d.react(event)
}

// SendTo keeps private events for bots inside the driver.
func (d *Driver) SendTo(roomID, participantID string, event *types.Event) {
	if d.IsBot(participantID) {
		d.learn(participantID, event)
		return
	}
	if d.next != nil {
		d.next.SendTo(roomID, participantID, event)
	}
}

func (d *Driver) learn(participantID string, event *types.Event) {
	if event.Type != types.EventRoleAssigned {
		return
	}
	role, ok := event.Payload.(*types.RoleAssignment)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.bots[participantID]
	state.isImpostor = role.IsImpostor
	state.item = role.Item
}

// react runs on the game goroutine and must only schedule work.
func (d *Driver) react(event *types.Event) {
	switch payload := event.Payload.(type) {
	case types.TurnChanged:
		if d.IsBot(payload.ParticipantID) {
			id := payload.ParticipantID
			d.schedule(func(ctrl interfaces.GameController) error {
				return ctrl.SubmitClue(id, d.clueFor(id))
			})
		}

	case types.PhaseChanged:
		switch payload.Phase {
		case types.PhaseDiscussion:
			for _, id := range d.aliveBots() {
				id := id
				d.schedule(func(ctrl interfaces.GameController) error {
					return ctrl.SkipDiscussion(id)
				})
			}
		case types.PhaseVoting:
			for _, id := range d.aliveBots() {
				id := id
				d.schedule(func(ctrl interfaces.GameController) error {
					return d.vote(ctrl, id)
				})
			}
		}

	case types.PlayerEliminated:
		d.mu.Lock()
		if state, ok := d.bots[payload.ParticipantID]; ok {
			state.alive = false
		}
		d.mu.Unlock()

	case types.GameEnded, types.SessionClosed:
		d.mu.Lock()
		d.ended = true
		d.mu.Unlock()
	}
}

func (d *Driver) schedule(action func(ctrl interfaces.GameController) error) {
	d.mu.Lock()
	ctrl := d.ctrl
	ended := d.ended
	wait := d.delay/2 + time.Duration(d.rng.Int63n(int64(d.delay)+1))
	d.mu.Unlock()

	if ctrl == nil || ended {
		return
	}

	d.clock.AfterFunc(wait, func() {
		if err := action(ctrl); err != nil {
			logging.Debugf("Simulated participant action failed: %v", err)
		}
	})
}

func (d *Driver) aliveBots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for id, state := range d.bots {
		if state.alive {
			ids = append(ids, id)
		}
	}
	return ids
}

// clueFor returns a hint for informed bots and a vague word for impostors.
func (d *Driver) clueFor(participantID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.bots[participantID]
	if state.isImpostor || state.item == nil {
		return impostorClues[d.rng.Intn(len(impostorClues))]
	}
	if len(state.item.Hints) > 0 {
		return state.item.Hints[d.rng.Intn(len(state.item.Hints))]
	}
	return state.item.Category
}

// vote picks a random living participant other than the voter, or skips
// when nobody is eligible.
func (d *Driver) vote(ctrl interfaces.GameController, voterID string) error {
	snapshot, err := ctrl.Snapshot(voterID)
	if err != nil {
		return err
	}

	var candidates []string
	for _, p := range snapshot.Participants {
		if p.Alive && p.ID != voterID {
			candidates = append(candidates, p.ID)
		}
	}

	target := types.SkipVote
	if len(candidates) > 0 {
		d.mu.Lock()
		target = candidates[d.rng.Intn(len(candidates))]
		d.mu.Unlock()
	}
	return ctrl.CastVote(voterID, target)
}

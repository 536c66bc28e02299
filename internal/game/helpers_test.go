package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"impostor/pkg/types"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock never fires on its own. Tests advance it with fire.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, d: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// pendingTimer returns the most recently armed timer that is still live.
func (f *fakeClock) pendingTimer() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.timers) - 1; i >= 0; i-- {
		t := f.timers[i]
		if !t.stopped && !t.fired {
			return t
		}
	}
	return nil
}

func (f *fakeClock) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

// fire expires the live timer and returns its duration.
func (f *fakeClock) fire(t *testing.T) time.Duration {
	t.Helper()
	timer := f.pendingTimer()
	if timer == nil {
		t.Fatal("Expected a pending timer, got none")
	}

	f.mu.Lock()
	timer.fired = true
	f.now = f.now.Add(timer.d)
	f.mu.Unlock()

	timer.fn()
	return timer.d
}

type sentEvent struct {
	to    string
	event *types.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Broadcast(roomID string, event *types.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{event: event})
}

func (n *recordingNotifier) SendTo(roomID, participantID string, event *types.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{to: participantID, event: event})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// broadcasts returns the payloads of broadcast events of one type.
func (n *recordingNotifier) broadcasts(eventType types.EventType) []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interface{}
	for _, e := range n.events {
		if e.to == "" && e.event.Type == eventType {
			out = append(out, e.event.Payload)
		}
	}
	return out
}

func (n *recordingNotifier) private(participantID string, eventType types.EventType) []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interface{}
	for _, e := range n.events {
		if e.to == participantID && e.event.Type == eventType {
			out = append(out, e.event.Payload)
		}
	}
	return out
}

func (n *recordingNotifier) phases() []types.Phase {
	var out []types.Phase
	for _, payload := range n.broadcasts(types.EventPhaseChanged) {
		out = append(out, payload.(types.PhaseChanged).Phase)
	}
	return out
}

// fixedProvider hands out items in order and fixed impostor seats.
type fixedProvider struct {
	mu    sync.Mutex
	items []types.Item
	next  int
	seats []int
	err   error
}

func (p *fixedProvider) PickItem() types.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	item := p.items[p.next%len(p.items)]
	p.next++
	return item
}

func (p *fixedProvider) PickImpostors(participantCount, impostorCount int) ([]int, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.seats, nil
}

type recordingStore struct {
	mu      sync.Mutex
	fail    bool
	games   []*types.GameRecord
	clues   []types.Clue
	votes   []types.Vote
	results []*types.RoundResult
	winner  types.Winner
	reason  string
}

var errStoreDown = errors.New("store unavailable")

func (s *recordingStore) CreateGame(ctx context.Context, game *types.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.games = append(s.games, game)
	return nil
}

func (s *recordingStore) StoreClue(ctx context.Context, gameID string, clue types.Clue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.clues = append(s.clues, clue)
	return nil
}

func (s *recordingStore) StoreVote(ctx context.Context, gameID string, vote types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.votes = append(s.votes, vote)
	return nil
}

func (s *recordingStore) StoreRoundResult(ctx context.Context, result *types.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingStore) FinishGame(ctx context.Context, gameID string, winner types.Winner, reason string, rounds int, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.winner = winner
	s.reason = reason
	return nil
}

func (s *recordingStore) GetGameHistory(ctx context.Context, gameID string) (*types.GameHistory, error) {
	return nil, errors.New("not implemented")
}

func (s *recordingStore) HealthCheck(ctx context.Context) error { return nil }
func (s *recordingStore) Close() error                          { return nil }

func players(ids ...string) []types.Participant {
	out := make([]types.Participant, len(ids))
	for i, id := range ids {
		out[i] = types.Participant{ID: id, Name: "Player " + id}
	}
	return out
}

type harness struct {
	ctrl     *Controller
	clock    *fakeClock
	notifier *recordingNotifier
	provider *fixedProvider
	store    *recordingStore
	ended    chan string
}

// newHarness builds a controller over ids with the impostor at seat.
func newHarness(t *testing.T, opts Options, seat int, ids ...string) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		provider: &fixedProvider{
			items: []types.Item{
				{Word: "lighthouse", Category: "places", Hints: []string{"coast"}},
				{Word: "violin", Category: "music", Hints: []string{"strings"}},
				{Word: "glacier", Category: "nature", Hints: []string{"ice"}},
			},
			seats: []int{seat},
		},
		store: &recordingStore{},
		ended: make(chan string, 4),
	}

	ctrl, err := NewController(Config{
		RoomID:       "room-1",
		Participants: players(ids...),
		Options:      opts,
		Provider:     h.provider,
		Notifier:     h.notifier,
		Store:        h.store,
		Clock:        h.clock,
		OnEnd: func(roomID string, c *Controller) {
			h.ended <- roomID
		},
	})
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(func() { _ = ctrl.Stop("test cleanup") })
	return h
}

// sync waits until the session goroutine has drained earlier work.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	if _, err := h.ctrl.Summary(); err != nil && !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Unexpected error syncing with controller: %v", err)
	}
}

func (h *harness) fire(t *testing.T) {
	t.Helper()
	h.clock.fire(t)
	h.sync(t)
}

func (h *harness) phase(t *testing.T) types.Phase {
	t.Helper()
	summary, err := h.ctrl.Summary()
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	return summary.Phase
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected session to finish")
	}
	select {
	case <-h.ctrl.HistoryFlushed():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected history to flush")
	}
}

// startToClues starts the game and expires the assignment timer.
func (h *harness) startToClues(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	h.fire(t)
	if phase := h.phase(t); phase != types.PhaseCluesTurn {
		t.Fatalf("Expected phase %s, got %s", types.PhaseCluesTurn, phase)
	}
}

func (h *harness) submitAllClues(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := h.ctrl.SubmitClue(id, "clue from "+id); err != nil {
			t.Fatalf("Expected clue from %s to be accepted, got %v", id, err)
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.TotalRounds = 3
	return opts
}

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"impostor/internal/database"
	"impostor/internal/game"
	"impostor/internal/hub"
	"impostor/internal/router"
	"impostor/internal/session"
	pkgdatabase "impostor/pkg/database"
	"impostor/pkg/types"
)

// scriptedProvider seats the impostors at fixed positions and hands out
// items in order, so every round gets a different word.
type scriptedProvider struct {
	mu    sync.Mutex
	seats []int
	next  int
}

func (p *scriptedProvider) PickItem() types.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return types.Item{Word: fmt.Sprintf("word-%d", p.next), Category: "test"}
}

func (p *scriptedProvider) PickImpostors(participantCount, impostorCount int) ([]int, error) {
	return p.seats, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recorded
}

type recorded struct {
	to    string
	event *types.Event
}

func (n *recordingNotifier) Broadcast(roomID string, event *types.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recorded{event: event})
}

func (n *recordingNotifier) SendTo(roomID, participantID string, event *types.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recorded{to: participantID, event: event})
}

func (n *recordingNotifier) payloads(to string, eventType types.EventType) []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interface{}
	for _, r := range n.events {
		if r.to == to && r.event.Type == eventType {
			out = append(out, r.event.Payload)
		}
	}
	return out
}

// stack is the server minus HTTP: sqlite history, sessions, router and hub.
type stack struct {
	store    *database.Manager
	sessions *session.Registry
	hub      *hub.Hub
	notifier *recordingNotifier
	provider *scriptedProvider
}

func scenarioOptions() game.Options {
	opts := game.DefaultOptions()
	opts.AssignmentDuration = 20 * time.Millisecond
	opts.TurnDuration = time.Hour
	opts.DiscussionDuration = time.Hour
	opts.VotingDuration = time.Hour
	opts.ResultDuration = 20 * time.Millisecond
	return opts
}

func newStack(t *testing.T) *stack {
	t.Helper()

	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = filepath.Join(t.TempDir(), "impostor.db")
	dbConfig.MigrationsPath = filepath.Join("..", "..", "migrations")

	store, err := database.NewManager(dbConfig)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := pkgdatabase.NewMigrationManager(store.GetDB(), dbConfig.MigrationsPath).ApplyMigrations(); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	notifier := &recordingNotifier{}
	provider := &scriptedProvider{seats: []int{0}}
	sessions := session.NewRegistry(session.Config{
		Provider: provider,
		Notifier: notifier,
		Store:    store,
		Options:  scenarioOptions(),
	})

	messageHub := hub.NewHub(nil, router.NewRouter(sessions, notifier))
	ctx, cancel := context.WithCancel(context.Background())
	if err := messageHub.Start(ctx); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}

	t.Cleanup(func() {
		sessions.Shutdown("test cleanup")
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer flushCancel()
		sessions.WaitFlushed(flushCtx)
		messageHub.Stop()
		cancel()
		store.Close()
	})

	return &stack{store: store, sessions: sessions, hub: messageHub, notifier: notifier, provider: provider}
}

// send delivers an inbound client message through the hub.
func (s *stack) send(t *testing.T, roomID, participantID, messageType string, content map[string]interface{}) {
	t.Helper()
	message := &types.Message{Type: messageType, Content: content}
	if content == nil {
		message.Content = map[string]interface{}{}
	}
	if err := s.hub.SendMessage(message, roomID, participantID); err != nil {
		t.Fatalf("Failed to send %s from %s: %v", messageType, participantID, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func snapshotOf(t *testing.T, ctrl *game.Controller) *types.Snapshot {
	t.Helper()
	snapshot, err := ctrl.Snapshot("")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	return snapshot
}

func waitForPhase(t *testing.T, ctrl *game.Controller, phase types.Phase, round int) {
	t.Helper()
	waitFor(t, fmt.Sprintf("%s in round %d", phase, round), func() bool {
		snapshot, err := ctrl.Snapshot("")
		return err == nil && snapshot.Phase == phase && snapshot.Round == round
	})
}

func fourPlayers() []types.Participant {
	return []types.Participant{
		{ID: "p1", Name: "Pia"},
		{ID: "p2", Name: "Quinn"},
		{ID: "p3", Name: "Rosa"},
		{ID: "p4", Name: "Sami"},
	}
}

// playClues submits one clue per participant in seat order.
func (s *stack) playClues(t *testing.T, ctrl *game.Controller, round int) {
	t.Helper()
	waitForPhase(t, ctrl, types.PhaseCluesTurn, round)

	for _, p := range fourPlayers() {
		speaker := p.ID
		waitFor(t, speaker+"'s turn", func() bool {
			return snapshotOf(t, ctrl).CurrentSpeaker == speaker
		})
		s.send(t, ctrl.RoomID(), speaker, types.MessageTypeSubmitClue, map[string]interface{}{"text": "clue from " + speaker})
	}
}

// skipDiscussion has everyone ask to skip, ending the phase early.
func (s *stack) skipDiscussion(t *testing.T, ctrl *game.Controller, round int) {
	t.Helper()
	waitForPhase(t, ctrl, types.PhaseDiscussion, round)
	for _, p := range fourPlayers() {
		s.send(t, ctrl.RoomID(), p.ID, types.MessageTypeSkipDiscussion, nil)
	}
}

func (s *stack) vote(t *testing.T, ctrl *game.Controller, round int, ballots map[string]string) {
	t.Helper()
	waitForPhase(t, ctrl, types.PhaseVoting, round)
	for voter, target := range ballots {
		s.send(t, ctrl.RoomID(), voter, types.MessageTypeCastVote, map[string]interface{}{"target": target})
	}
}

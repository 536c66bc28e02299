// Package session keeps the room -> running game map. A room holds at most
// one game; the entry is created on start and removed when the game ends or
// is torn down.
package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"impostor/internal/bot"
	"impostor/internal/game"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

// Config wires the registry to the shared collaborators of every game.
type Config struct {
	Provider game.ItemProvider
	Notifier interfaces.Notifier
	Store    interfaces.HistoryStore
	Options  game.Options
	Clock    game.Clock

	// BotDelay is the base think time of simulated participants.
	BotDelay time.Duration
}

// StartRequest describes a new game. Zero values fall back to the
// registry defaults.
type StartRequest struct {
	RoomID        string              `json:"room_id"`
	Participants  []types.Participant `json:"participants"`
	TotalRounds   int                 `json:"total_rounds,omitempty"`
	ImpostorCount int                 `json:"impostor_count,omitempty"`
	PublicVoting  bool                `json:"public_voting,omitempty"`
}

type Registry struct {
	cfg      Config
	sessions map[string]*game.Controller
	stopped  []*game.Controller
	closed   bool
	mu       sync.RWMutex
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = game.RealClock{}
	}
	if cfg.BotDelay <= 0 {
		cfg.BotDelay = 1500 * time.Millisecond
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*game.Controller),
	}
}

// Start creates and starts a game for the room. A configuration violation
// leaves the registry untouched.
func (r *Registry) Start(req StartRequest) (*game.Controller, error) {
	opts := r.cfg.Options
	if req.TotalRounds > 0 {
		opts.TotalRounds = req.TotalRounds
	}
	if req.ImpostorCount > 0 {
		opts.ImpostorCount = req.ImpostorCount
	}
	if req.PublicVoting {
		opts.PublicVoting = true
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if _, busy := r.sessions[req.RoomID]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRoomBusy, req.RoomID)
	}

	notifier := r.cfg.Notifier
	var driver *bot.Driver
	if simulated := simulatedIDs(req.Participants); len(simulated) > 0 {
		driver = bot.NewDriver(r.cfg.Notifier, simulated, r.cfg.Clock, r.cfg.BotDelay)
		notifier = driver
	}

	ctrl, err := game.NewController(game.Config{
		RoomID:       req.RoomID,
		Participants: req.Participants,
		Options:      opts,
		Provider:     r.cfg.Provider,
		Notifier:     notifier,
		Store:        r.cfg.Store,
		Clock:        r.cfg.Clock,
		OnEnd:        r.remove,
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if driver != nil {
		driver.Attach(ctrl)
	}
	r.sessions[req.RoomID] = ctrl
	r.mu.Unlock()

	if err := ctrl.Start(); err != nil {
		_ = ctrl.Stop("start failed")
		return nil, fmt.Errorf("failed to start game in room %s: %w", req.RoomID, err)
	}

	log.Printf("Started game %s in room %s", ctrl.GameID(), req.RoomID)
	return ctrl, nil
}

// remove runs on the game's own goroutine once it finishes.
func (r *Registry) remove(roomID string, ctrl *game.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.sessions[roomID]; exists && current == ctrl {
		delete(r.sessions, roomID)
		log.Printf("Removed game %s from room %s", ctrl.GameID(), roomID)
	}
}

func (r *Registry) Get(roomID string) (*game.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, exists := r.sessions[roomID]
	return ctrl, exists
}

// Lookup implements interfaces.SessionRegistry.
func (r *Registry) Lookup(roomID string) (interfaces.GameController, error) {
	ctrl, exists := r.Get(roomID)
	if !exists {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Teardown stops the room's game and removes it. Pending timers are
// cancelled before this returns.
func (r *Registry) Teardown(roomID, reason string) error {
	r.mu.Lock()
	ctrl, exists := r.sessions[roomID]
	if exists {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	log.Printf("Tearing down game %s in room %s: %s", ctrl.GameID(), roomID, reason)
	return ctrl.Stop(reason)
}

// ListActive returns summaries of all running games ordered by room.
func (r *Registry) ListActive() []game.Summary {
	r.mu.RLock()
	controllers := make([]*game.Controller, 0, len(r.sessions))
	for _, ctrl := range r.sessions {
		controllers = append(controllers, ctrl)
	}
	r.mu.RUnlock()

	summaries := make([]game.Summary, 0, len(controllers))
	for _, ctrl := range controllers {
		summary, err := ctrl.Summary()
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RoomID < summaries[j].RoomID
	})
	return summaries
}

// IsParticipant reports whether participantID belongs to the room's game.
func (r *Registry) IsParticipant(roomID, participantID string) bool {
	ctrl, exists := r.Get(roomID)
	return exists && ctrl.IsParticipant(participantID)
}

func (r *Registry) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]interface{}{
		"active_games": len(r.sessions),
	}
}

// Shutdown stops every running game and refuses new ones.
func (r *Registry) Shutdown(reason string) {
	r.mu.Lock()
	r.closed = true
	controllers := make([]*game.Controller, 0, len(r.sessions))
	for roomID, ctrl := range r.sessions {
		controllers = append(controllers, ctrl)
		delete(r.sessions, roomID)
	}
	r.stopped = append(r.stopped, controllers...)
	r.mu.Unlock()

	for _, ctrl := range controllers {
		if err := ctrl.Stop(reason); err != nil {
			log.Printf("Failed to stop game %s: %v", ctrl.GameID(), err)
		}
	}
	log.Printf("Session registry shut down, stopped %d games", len(controllers))
}

// WaitFlushed blocks until the games stopped by Shutdown have written their
// remaining history, or ctx is done.
func (r *Registry) WaitFlushed(ctx context.Context) error {
	r.mu.RLock()
	controllers := append([]*game.Controller(nil), r.stopped...)
	r.mu.RUnlock()

	for _, ctrl := range controllers {
		select {
		case <-ctrl.HistoryFlushed():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func simulatedIDs(participants []types.Participant) []string {
	var ids []string
	for _, p := range participants {
		if p.IsSimulated {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

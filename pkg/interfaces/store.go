package interfaces

import (
	"context"
	"time"

	"impostor/pkg/types"
)

// HistoryStore persists clue, vote and outcome history for statistics.
// Sessions treat it as optional: a failing store never stalls a game.
type HistoryStore interface {
	CreateGame(ctx context.Context, game *types.GameRecord) error
	StoreClue(ctx context.Context, gameID string, clue types.Clue) error
	StoreVote(ctx context.Context, gameID string, vote types.Vote) error
	StoreRoundResult(ctx context.Context, result *types.RoundResult) error
	FinishGame(ctx context.Context, gameID string, winner types.Winner, reason string, rounds int, endedAt time.Time) error

	// GetGameHistory returns ErrGameNotFound for unknown games.
	GetGameHistory(ctx context.Context, gameID string) (*types.GameHistory, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

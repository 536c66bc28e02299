package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	dbconfig "impostor/pkg/database"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

const (
	writeQueueSize     = 100
	writeTimeout       = 30 * time.Second
	defaultRetryDelay  = 5 * time.Second
	gameStatusActive   = "active"
	gameStatusFinished = "finished"
	gameStatusAborted  = "aborted"
)

var ErrManagerClosed = errors.New("database manager is closed")

// Manager is the SQLite history store. Reads run concurrently on the pool;
// every write is funnelled through a single writer goroutine.
type Manager struct {
	db           *sqlx.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	retryDelay   time.Duration
}

type writeOperation struct {
	operation func(*sqlx.DB) error
	result    chan error
}

// gameRow mirrors the games table.
type gameRow struct {
	ID               string       `db:"id"`
	RoomID           string       `db:"room_id"`
	ItemWord         string       `db:"item_word"`
	ItemCategory     string       `db:"item_category"`
	ImpostorIDs      string       `db:"impostor_ids"`
	ParticipantCount int          `db:"participant_count"`
	TotalRounds      int          `db:"total_rounds"`
	Winner           string       `db:"winner"`
	WinReason        string       `db:"win_reason"`
	RoundsPlayed     int          `db:"rounds_played"`
	Status           string       `db:"status"`
	StartedAt        time.Time    `db:"started_at"`
	EndedAt          sql.NullTime `db:"ended_at"`
}

type roundResultRow struct {
	Round        int       `db:"round"`
	ItemWord     string    `db:"item_word"`
	EliminatedID string    `db:"eliminated_id"`
	WasImpostor  bool      `db:"was_impostor"`
	Reason       string    `db:"reason"`
	Tally        string    `db:"tally"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewManager opens the database and starts the writer. Schema migrations
// are applied separately through pkg/database.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, writeQueueSize),
		shutdown:     make(chan struct{}),
		retryDelay:   defaultRetryDelay,
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine. A failed
// write is retried once after retryDelay.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && !errors.Is(err, interfaces.ErrGameNotFound) {
				log.Printf("Database write failed, retrying in %v: %v", m.retryDelay, err)
				time.Sleep(m.retryDelay)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sqlx.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(writeTimeout):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}

	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateGame records a started game.
func (m *Manager) CreateGame(ctx context.Context, game *types.GameRecord) error {
	impostorsJSON, err := json.Marshal(game.ImpostorIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal impostor ids: %w", err)
	}

	status := game.Status
	if status == "" {
		status = gameStatusActive
	}

	return m.executeWrite(ctx, func(db *sqlx.DB) error {
		query := `
			INSERT INTO games (id, room_id, item_word, item_category, impostor_ids,
				participant_count, total_rounds, status, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			game.ID,
			game.RoomID,
			game.ItemWord,
			game.ItemCategory,
			string(impostorsJSON),
			game.ParticipantCount,
			game.TotalRounds,
			status,
			game.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}
		return nil
	})
}

// StoreClue appends one clue to the game's log.
func (m *Manager) StoreClue(ctx context.Context, gameID string, clue types.Clue) error {
	return m.executeWrite(ctx, func(db *sqlx.DB) error {
		query := `
			INSERT INTO clues (game_id, round, turn_order, participant_id, participant_name, text, forfeited, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			gameID,
			clue.Round,
			clue.Order,
			clue.ParticipantID,
			clue.ParticipantName,
			clue.Text,
			clue.Forfeited,
			clue.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert clue: %w", err)
		}
		return nil
	})
}

// StoreVote records a ballot. A changed vote replaces the earlier one for
// the same voter and round.
func (m *Manager) StoreVote(ctx context.Context, gameID string, vote types.Vote) error {
	return m.executeWrite(ctx, func(db *sqlx.DB) error {
		query := `
			INSERT INTO votes (game_id, round, voter_id, target_id, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (game_id, round, voter_id)
			DO UPDATE SET target_id = excluded.target_id, created_at = excluded.created_at
		`
		_, err := db.ExecContext(ctx, query, gameID, vote.Round, vote.VoterID, vote.TargetID, vote.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to upsert vote: %w", err)
		}
		return nil
	})
}

// StoreRoundResult records the outcome of one voting phase and bumps the
// game's rounds_played.
func (m *Manager) StoreRoundResult(ctx context.Context, result *types.RoundResult) error {
	tallyJSON, err := json.Marshal(result.Tally)
	if err != nil {
		return fmt.Errorf("failed to marshal tally: %w", err)
	}

	return m.executeWrite(ctx, func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO round_results (game_id, round, item_word, eliminated_id, was_impostor, reason, tally, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.GameID,
			result.Round,
			result.ItemWord,
			result.EliminatedID,
			result.WasImpostor,
			result.Reason,
			string(tallyJSON),
			result.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert round result: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE games SET rounds_played = MAX(rounds_played, ?) WHERE id = ?`,
			result.Round, result.GameID)
		if err != nil {
			return fmt.Errorf("failed to update rounds played: %w", err)
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit round result: %w", err)
		}
		return nil
	})
}

// FinishGame closes a game record. An empty winner marks the game aborted.
func (m *Manager) FinishGame(ctx context.Context, gameID string, winner types.Winner, reason string, rounds int, endedAt time.Time) error {
	status := gameStatusFinished
	if winner == types.WinnerNone {
		status = gameStatusAborted
	}

	return m.executeWrite(ctx, func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE games
			SET winner = ?, win_reason = ?, rounds_played = ?, status = ?, ended_at = ?
			WHERE id = ?
		`, string(winner), reason, rounds, status, endedAt, gameID)
		if err != nil {
			return fmt.Errorf("failed to finish game: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrGameNotFound
		}
		return nil
	})
}

// GetGameHistory loads a game with its clues, ballots and round results.
func (m *Manager) GetGameHistory(ctx context.Context, gameID string) (*types.GameHistory, error) {
	var row gameRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, room_id, item_word, item_category, impostor_ids, participant_count,
			total_rounds, winner, win_reason, rounds_played, status, started_at, ended_at
		FROM games
		WHERE id = ?
	`, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to query game: %w", err)
	}

	game := &types.GameRecord{
		ID:               row.ID,
		RoomID:           row.RoomID,
		ItemWord:         row.ItemWord,
		ItemCategory:     row.ItemCategory,
		ParticipantCount: row.ParticipantCount,
		TotalRounds:      row.TotalRounds,
		Winner:           types.Winner(row.Winner),
		WinReason:        row.WinReason,
		RoundsPlayed:     row.RoundsPlayed,
		StartedAt:        row.StartedAt,
		Status:           row.Status,
	}
	if row.EndedAt.Valid {
		game.EndedAt = &row.EndedAt.Time
	}
	if err := json.Unmarshal([]byte(row.ImpostorIDs), &game.ImpostorIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal impostor ids: %w", err)
	}

	history := &types.GameHistory{
		Game:    game,
		Clues:   []types.Clue{},
		Votes:   []types.Vote{},
		Results: []*types.RoundResult{},
	}

	err = m.db.SelectContext(ctx, &history.Clues, `
		SELECT participant_id, participant_name, text, round, turn_order, forfeited, created_at
		FROM clues
		WHERE game_id = ?
		ORDER BY round ASC, turn_order ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clues: %w", err)
	}

	err = m.db.SelectContext(ctx, &history.Votes, `
		SELECT voter_id, target_id, round, created_at
		FROM votes
		WHERE game_id = ?
		ORDER BY round ASC, created_at ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}

	var results []roundResultRow
	err = m.db.SelectContext(ctx, &results, `
		SELECT round, item_word, eliminated_id, was_impostor, reason, tally, created_at
		FROM round_results
		WHERE game_id = ?
		ORDER BY round ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query round results: %w", err)
	}

	for _, r := range results {
		result := &types.RoundResult{
			GameID:       gameID,
			Round:        r.Round,
			ItemWord:     r.ItemWord,
			EliminatedID: r.EliminatedID,
			WasImpostor:  r.WasImpostor,
			Reason:       r.Reason,
			Timestamp:    r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.Tally), &result.Tally); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tally: %w", err)
		}
		history.Results = append(history.Results, result)
	}

	return history, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM games"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying database connection for migrations
func (m *Manager) GetDB() *sql.DB {
	return m.db.DB
}

// Close shuts down the database manager
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

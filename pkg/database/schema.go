package database

import (
	"database/sql"
	"fmt"
)

// historyTables and historyIndexes are created by 001_initial_schema.sql.
var (
	historyTables  = []string{"games", "clues", "votes", "round_results"}
	historyIndexes = []string{
		"idx_games_room",
		"idx_games_status",
		"idx_clues_game_round",
		"idx_votes_game_round",
		"idx_round_results_game",
	}
)

// historyColumns is the declared type of every column the history store
// touches.
var historyColumns = map[string]map[string]string{
	"games": {
		"id":                "TEXT",
		"room_id":           "TEXT",
		"item_word":         "TEXT",
		"item_category":     "TEXT",
		"impostor_ids":      "TEXT",
		"participant_count": "INTEGER",
		"total_rounds":      "INTEGER",
		"winner":            "TEXT",
		"win_reason":        "TEXT",
		"rounds_played":     "INTEGER",
		"status":            "TEXT",
		"started_at":        "DATETIME",
		"ended_at":          "DATETIME",
	},
	"clues": {
		"game_id":          "TEXT",
		"round":            "INTEGER",
		"turn_order":       "INTEGER",
		"participant_id":   "TEXT",
		"participant_name": "TEXT",
		"text":             "TEXT",
		"forfeited":        "BOOLEAN",
		"created_at":       "DATETIME",
	},
	"votes": {
		"game_id":    "TEXT",
		"round":      "INTEGER",
		"voter_id":   "TEXT",
		"target_id":  "TEXT",
		"created_at": "DATETIME",
	},
	"round_results": {
		"game_id":       "TEXT",
		"round":         "INTEGER",
		"item_word":     "TEXT",
		"eliminated_id": "TEXT",
		"was_impostor":  "BOOLEAN",
		"reason":        "TEXT",
		"tally":         "TEXT",
		"created_at":    "DATETIME",
	},
}

// SchemaValidator checks a live database against the expected history schema.
type SchemaValidator struct {
	db *sql.DB
}

func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist requires the migration ledger and every history table.
func (v *SchemaValidator) ValidateTablesExist() error {
	return requireObjects(v.db, "table", append([]string{"schema_migrations"}, historyTables...))
}

func (v *SchemaValidator) ValidateIndexes() error {
	return requireObjects(v.db, "index", historyIndexes)
}

// ValidateTableStructure compares PRAGMA table_info with historyColumns.
// Extra columns are allowed.
func (v *SchemaValidator) ValidateTableStructure() error {
	for _, table := range historyTables {
		found, err := columnTypes(v.db, table)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		for column, want := range historyColumns[table] {
			got, ok := found[column]
			if !ok {
				return fmt.Errorf("%s table structure invalid: column %s not found", table, column)
			}
			if got != want {
				return fmt.Errorf("%s table structure invalid: column %s has type %s, expected %s", table, column, got, want)
			}
		}
	}
	return nil
}

// ValidateConstraints verifies that foreign keys and the one-ballot-per-round
// rule are enforced by the database. It leaves no rows behind.
func (v *SchemaValidator) ValidateConstraints() error {
	_, err := v.db.Exec(`
		INSERT INTO clues (game_id, round, turn_order, participant_id, participant_name, text, created_at)
		VALUES ('constraint-check-missing', 1, 1, 'p1', 'p1', 'x', CURRENT_TIMESTAMP)
	`)
	if err == nil {
		_, _ = v.db.Exec("DELETE FROM clues WHERE game_id = 'constraint-check-missing'")
		return fmt.Errorf("foreign key constraint not enforced: clues.game_id")
	}

	_, err = v.db.Exec(`
		INSERT INTO games (id, room_id, item_word, impostor_ids, participant_count, total_rounds, started_at)
		VALUES ('constraint-check', 'room', 'word', '[]', 2, 1, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to create constraint check game: %w", err)
	}
	defer func() {
		_, _ = v.db.Exec("DELETE FROM votes WHERE game_id = 'constraint-check'")
		_, _ = v.db.Exec("DELETE FROM games WHERE id = 'constraint-check'")
	}()

	insertVote := `
		INSERT INTO votes (game_id, round, voter_id, target_id, created_at)
		VALUES ('constraint-check', 1, 'p1', 'p2', CURRENT_TIMESTAMP)
	`
	if _, err := v.db.Exec(insertVote); err != nil {
		return fmt.Errorf("failed to insert constraint check vote: %w", err)
	}
	if _, err := v.db.Exec(insertVote); err == nil {
		return fmt.Errorf("unique constraint not enforced: votes(game_id, round, voter_id)")
	}

	return nil
}

func requireObjects(db *sql.DB, kind string, names []string) error {
	for _, name := range names {
		exists, err := objectExists(db, kind, name)
		if err != nil {
			return fmt.Errorf("failed to check %s %s: %w", kind, name, err)
		}
		if !exists {
			return fmt.Errorf("required %s %s does not exist", kind, name)
		}
	}
	return nil
}

func objectExists(db *sql.DB, kind, name string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func columnTypes(db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			defaultValue     sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		types[name] = dataType
	}
	return types, rows.Err()
}

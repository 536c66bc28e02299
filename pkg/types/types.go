package types

import (
	"time"
)

// Phase is a named stage of a game session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAssignment Phase = "assignment"
	PhaseCluesTurn  Phase = "clues_turn"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseResult     Phase = "result"
	PhaseNextRound  Phase = "next_round"
	PhaseGameEnd    Phase = "game_end"
)

// Winner identifies the side that won a session. WinnerNone means undecided.
type Winner string

const (
	WinnerNone     Winner = ""
	WinnerMajority Winner = "majority"
	WinnerImpostor Winner = "impostor"
)

// Win reasons reported in game_ended events and stored with the game record.
const (
	WinReasonImpostorsEliminated = "impostors_eliminated"
	WinReasonParity              = "parity"
	WinReasonSurvival            = "survival"
	WinReasonAborted             = "aborted"
)

// No-elimination reasons.
const (
	NoEliminationNoVotes = "no-votes"
	NoEliminationTie     = "tie"
)

// SkipVote is the ballot value for an abstention. It counts as a cast vote
// but never makes anyone a candidate for elimination.
const SkipVote = "skip"

// Action is something a participant may attempt during a session.
type Action string

const (
	ActionSubmitClue            Action = "submit_clue"
	ActionCastVote              Action = "cast_vote"
	ActionSendDiscussionMessage Action = "send_discussion_message"
)

// Item is the secret handed to every informed participant for one round.
type Item struct {
	Word     string   `json:"word"`
	Category string   `json:"category"`
	Hints    []string `json:"hints,omitempty"`
}

// Participant is one player inside a session.
// IsSimulated marks stand-ins driven by the server rather than a client.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsImpostor  bool   `json:"-"`
	IsSimulated bool   `json:"is_simulated"`
	Alive       bool   `json:"alive"`
	HasClue     bool   `json:"has_clue"`
	HasVoted    bool   `json:"has_voted"`
}

// ParticipantRef is the public identity of a participant.
type ParticipantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clue is one entry of the per-round clue log.
type Clue struct {
	ParticipantID   string    `json:"participant_id" db:"participant_id"`
	ParticipantName string    `json:"participant_name" db:"participant_name"`
	Text            string    `json:"text" db:"text"`
	Round           int       `json:"round" db:"round"`
	Order           int       `json:"order" db:"turn_order"`
	Forfeited       bool      `json:"forfeited" db:"forfeited"`
	Timestamp       time.Time `json:"timestamp" db:"created_at"`
}

// Vote is a single ballot as recorded in the history store.
type Vote struct {
	VoterID   string    `json:"voter_id" db:"voter_id"`
	TargetID  string    `json:"target_id" db:"target_id"`
	Round     int       `json:"round" db:"round"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// RoundResult is the outcome of one voting phase.
type RoundResult struct {
	GameID       string         `json:"game_id"`
	Round        int            `json:"round"`
	ItemWord     string         `json:"item_word"`
	EliminatedID string         `json:"eliminated_id,omitempty"`
	WasImpostor  bool           `json:"was_impostor"`
	Reason       string         `json:"reason,omitempty"`
	Tally        map[string]int `json:"tally"`
	Timestamp    time.Time      `json:"timestamp"`
}

// GameRecord is the persisted summary of one session.
type GameRecord struct {
	ID               string     `json:"id"`
	RoomID           string     `json:"room_id"`
	ItemWord         string     `json:"item_word"`
	ItemCategory     string     `json:"item_category"`
	ImpostorIDs      []string   `json:"impostor_ids"`
	ParticipantCount int        `json:"participant_count"`
	TotalRounds      int        `json:"total_rounds"`
	Winner           Winner     `json:"winner,omitempty"`
	WinReason        string     `json:"win_reason,omitempty"`
	RoundsPlayed     int        `json:"rounds_played"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Status           string     `json:"status"`
}

// GameHistory bundles everything the history store knows about a game.
type GameHistory struct {
	Game    *GameRecord    `json:"game"`
	Clues   []Clue         `json:"clues"`
	Votes   []Vote         `json:"votes"`
	Results []*RoundResult `json:"results"`
}

// RoleAssignment is what a single participant privately learns about
// their own role for the current round.
type RoleAssignment struct {
	Round      int   `json:"round"`
	IsImpostor bool  `json:"is_impostor"`
	Item       *Item `json:"item,omitempty"`
}

// Snapshot is a read model of a live session, used on reconnect and by the API.
type Snapshot struct {
	RoomID         string              `json:"room_id"`
	GameID         string              `json:"game_id"`
	Phase          Phase               `json:"phase"`
	Round          int                 `json:"round"`
	TotalRounds    int                 `json:"total_rounds"`
	PhaseStartedAt time.Time           `json:"phase_started_at"`
	PhaseDuration  int64               `json:"phase_duration_ms"`
	Participants   []Participant       `json:"participants"`
	CurrentSpeaker string              `json:"current_speaker,omitempty"`
	Clues          []Clue              `json:"clues"`
	Discussion     []DiscussionMessage `json:"discussion,omitempty"`
	VotesCast      int                 `json:"votes_cast"`
	Eliminations   []string            `json:"eliminations"`
	Winner         Winner              `json:"winner,omitempty"`
	Role           *RoleAssignment     `json:"role,omitempty"`
}

// Message is an inbound client action after the hub has attached the
// sender's room and participant identity.
type Message struct {
	ID            string                 `json:"id"`
	RoomID        string                 `json:"room_id"`
	ParticipantID string                 `json:"participant_id"`
	Type          string                 `json:"type"`
	Content       map[string]interface{} `json:"content"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Inbound message types accepted over the websocket.
const (
	MessageTypeSubmitClue        = "submit_clue"
	MessageTypeCastVote          = "cast_vote"
	MessageTypeDiscussionMessage = "discussion_message"
	MessageTypeSkipDiscussion    = "skip_discussion"
)

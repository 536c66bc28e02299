package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound notification.
type EventType string

const (
	EventRoleAssigned      EventType = "role_assigned"
	EventPhaseChanged      EventType = "phase_changed"
	EventTurnChanged       EventType = "turn_changed"
	EventChatGateChanged   EventType = "chat_gate_changed"
	EventClueReceived      EventType = "clue_received"
	EventDiscussionMessage EventType = "discussion_message"
	EventSkipProgress      EventType = "skip_progress"
	EventVoteTallyUpdated  EventType = "vote_tally_updated"
	EventPlayerEliminated  EventType = "player_eliminated"
	EventNoElimination     EventType = "no_elimination"
	EventGameEnded         EventType = "game_ended"
	EventActionRejected    EventType = "action_rejected"
	EventSessionClosed     EventType = "session_closed"
	EventSnapshot          EventType = "snapshot"
)

// Event is the envelope for everything the server pushes to clients.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RoomID    string      `json:"room_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps a payload with a fresh id and the current time.
func NewEvent(eventType EventType, roomID string, payload interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

type PhaseChanged struct {
	Phase       Phase      `json:"phase"`
	Round       int        `json:"round"`
	TotalRounds int        `json:"total_rounds"`
	DurationMS  int64      `json:"duration_ms"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type TurnChanged struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	TurnIndex     int    `json:"turn_index"`
	TurnCount     int    `json:"turn_count"`
	DurationMS    int64  `json:"duration_ms"`
}

// Chat channels controlled by the chat gate.
const (
	ChannelTurn       = "turn"
	ChannelDiscussion = "discussion"
	ChannelAll        = "all"
)

type ChatGateChanged struct {
	Channel string `json:"channel"`
	Locked  bool   `json:"locked"`
	Speaker string `json:"speaker,omitempty"`
}

type ClueReceived struct {
	Clue Clue `json:"clue"`
}

type DiscussionMessage struct {
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

type SkipProgress struct {
	Requested int `json:"requested"`
	Needed    int `json:"needed"`
}

// VoteTallyUpdated carries aggregate counts. Ballots is only filled
// when the session runs with public voting.
type VoteTallyUpdated struct {
	Cast     int               `json:"cast"`
	Expected int               `json:"expected"`
	Counts   map[string]int    `json:"counts"`
	Ballots  map[string]string `json:"ballots,omitempty"`
}

type PlayerEliminated struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	WasImpostor   bool   `json:"was_impostor"`
	Votes         int    `json:"votes"`
}

type NoElimination struct {
	Reason string `json:"reason"`
}

type GameEnded struct {
	Winner       Winner           `json:"winner"`
	Reason       string           `json:"reason"`
	Impostors    []ParticipantRef `json:"impostors"`
	Item         Item             `json:"item"`
	Eliminations []string         `json:"eliminations"`
	Rounds       int              `json:"rounds"`
}

type ActionRejected struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type SessionClosed struct {
	Reason string `json:"reason"`
}

// Package chatgate decides who may currently send which kind of message
// inside one session. Every change is announced through the emitter so
// clients can enable or disable their inputs.
package chatgate

import "impostor/pkg/types"

// Emitter receives one notification per lock or unlock call.
type Emitter func(change types.ChatGateChanged)

// Gate is owned by a single session controller and is not safe for
// concurrent use.
type Gate struct {
	turnOpen       bool
	speaker        string
	discussionOpen bool
	emit           Emitter
}

// New returns a fully locked gate. A nil emitter discards notifications.
func New(emit Emitter) *Gate {
	if emit == nil {
		emit = func(types.ChatGateChanged) {}
	}
	return &Gate{emit: emit}
}

// LockAll closes both channels and clears the allowed speaker.
func (g *Gate) LockAll() {
	g.turnOpen = false
	g.speaker = ""
	g.discussionOpen = false
	g.emit(types.ChatGateChanged{Channel: types.ChannelAll, Locked: true})
}

// UnlockTurn opens the turn channel for exactly one participant.
func (g *Gate) UnlockTurn(participantID string) {
	g.turnOpen = true
	g.speaker = participantID
	g.emit(types.ChatGateChanged{Channel: types.ChannelTurn, Locked: false, Speaker: participantID})
}

func (g *Gate) LockTurn() {
	g.turnOpen = false
	g.speaker = ""
	g.emit(types.ChatGateChanged{Channel: types.ChannelTurn, Locked: true})
}

// UnlockDiscussion opens the discussion channel to everyone. Whether the
// sender is still alive is the caller's concern.
func (g *Gate) UnlockDiscussion() {
	g.discussionOpen = true
	g.emit(types.ChatGateChanged{Channel: types.ChannelDiscussion, Locked: false})
}

func (g *Gate) LockDiscussion() {
	g.discussionOpen = false
	g.emit(types.ChatGateChanged{Channel: types.ChannelDiscussion, Locked: true})
}

// CanSendClue is true only for the single allowed speaker of an open turn.
func (g *Gate) CanSendClue(participantID string) bool {
	return g.turnOpen && g.speaker != "" && g.speaker == participantID
}

func (g *Gate) CanSendDiscussionMessage(participantID string) bool {
	return g.discussionOpen
}

// Speaker returns the participant holding the turn, or "" when locked.
func (g *Gate) Speaker() string {
	if !g.turnOpen {
		return ""
	}
	return g.speaker
}

package interfaces

import "impostor/pkg/types"

// Notifier delivers outbound session events to connected participants.
// Implementations must not call back into the session that invoked them.
type Notifier interface {
	// Broadcast sends an event to every participant of a room.
	Broadcast(roomID string, event *types.Event)

	// SendTo sends an event privately to one participant of a room.
	SendTo(roomID, participantID string, event *types.Event)
}

package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"impostor/internal/logging"
	"impostor/pkg/types"
)

// Registry tracks live connections per room and participant. It is the
// Notifier the game sessions publish through.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // roomID -> participantID -> Connection
	total int
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*Connection),
	}
}

// RegisterConnection adds an authenticated connection. A participant that
// reconnects replaces its previous connection, which is closed.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	participantID := conn.GetParticipantID()
	roomID := conn.GetRoomID()

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[roomID] = room
	}

	if existing, ok := room[participantID]; ok {
		// Closed asynchronously so the lock is not held across network I/O.
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close replaced connection for %s in room %s: %v", participantID, roomID, err)
			}
		}()
	} else {
		r.total++
	}
	room[participantID] = conn

	return nil
}

// UnregisterConnection removes conn if it is still the registered
// connection of its participant. Stale connections are ignored.
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}

	participantID := conn.GetParticipantID()
	roomID := conn.GetRoomID()

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || room[participantID] != conn {
		return
	}

	delete(room, participantID)
	r.total--
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) GetConnection(roomID, participantID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.rooms[roomID][participantID]
	return conn, ok
}

func (r *Registry) IsConnected(roomID, participantID string) bool {
	_, ok := r.GetConnection(roomID, participantID)
	return ok
}

func (r *Registry) GetRoomConnections(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.rooms[roomID]))
	for _, conn := range r.rooms[roomID] {
		connections = append(connections, conn)
	}
	return connections
}

// Broadcast delivers event to every connected participant of the room.
// Delivery never blocks; a client with a full buffer misses the event.
func (r *Registry) Broadcast(roomID string, event *types.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode %s event for room %s: %v", event.Type, roomID, err)
		return
	}

	for _, conn := range r.GetRoomConnections(roomID) {
		if err := conn.enqueue(data); err != nil {
			logging.Debugf("Dropped %s event for %s in room %s: %v", event.Type, conn.GetParticipantID(), roomID, err)
		}
	}
}

// SendTo delivers event to a single participant if it is connected.
func (r *Registry) SendTo(roomID, participantID string, event *types.Event) {
	conn, ok := r.GetConnection(roomID, participantID)
	if !ok {
		logging.Debugf("No connection for %s in room %s, dropping %s event", participantID, roomID, event.Type)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode %s event for %s in room %s: %v", event.Type, participantID, roomID, err)
		return
	}
	if err := conn.enqueue(data); err != nil {
		logging.Debugf("Dropped %s event for %s in room %s: %v", event.Type, participantID, roomID, err)
	}
}

func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": r.total,
		"active_rooms":      len(r.rooms),
	}
}

package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"impostor/internal/logging"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

var upgrader = websocket.Upgrader{
	// Participants join from arbitrary hosts through the shared join link.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// MessageSink accepts inbound client messages for routing.
type MessageSink interface {
	SendMessage(message *types.Message, roomID, participantID string) error
}

// Handler upgrades participant requests into websocket connections.
type Handler struct {
	registry *Registry
	sessions interfaces.SessionRegistry
	sink     MessageSink
	settings Settings
}

func NewHandler(registry *Registry, sessions interfaces.SessionRegistry, sink MessageSink, settings Settings) *Handler {
	return &Handler{
		registry: registry,
		sessions: sessions,
		sink:     sink,
		settings: settings.withDefaults(),
	}
}

// HandleWebSocket serves GET /ws?room_id=...&participant_id=...
// Membership is checked before the upgrade so rejected clients get a plain
// HTTP status.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	participantID := r.URL.Query().Get("participant_id")

	if roomID == "" || participantID == "" {
		http.Error(w, "Missing required query parameters: room_id, participant_id", http.StatusBadRequest)
		return
	}
	if !types.IsValidRoomID(roomID) {
		http.Error(w, "Invalid room_id format", http.StatusBadRequest)
		return
	}
	if !types.IsValidParticipantID(participantID) {
		http.Error(w, "Invalid participant_id format", http.StatusBadRequest)
		return
	}

	ctrl, err := h.sessions.Lookup(roomID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			http.Error(w, "No game running in this room", http.StatusNotFound)
		} else {
			http.Error(w, "Room validation failed", http.StatusInternalServerError)
		}
		return
	}
	if !ctrl.IsParticipant(participantID) {
		http.Error(w, "Not a participant of this game", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := newConnection(conn, h.settings)
	if err := wsConn.SetCredentials(participantID, roomID); err != nil {
		log.Printf("Failed to set credentials: %v", err)
		_ = wsConn.Close()
		return
	}

	if err := h.registry.RegisterConnection(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}
	log.Printf("Participant %s connected to room %s", participantID, roomID)

	go h.sendSnapshot(wsConn, ctrl)
	go h.handleConnection(wsConn)
}

// sendSnapshot brings a fresh or reconnecting client up to date.
func (h *Handler) sendSnapshot(conn *Connection, ctrl interfaces.GameController) {
	participantID := conn.GetParticipantID()
	roomID := conn.GetRoomID()

	snapshot, err := ctrl.Snapshot(participantID)
	if err != nil {
		logging.Debugf("Snapshot for %s in room %s unavailable: %v", participantID, roomID, err)
		return
	}

	if err := conn.WriteJSON(types.NewEvent(types.EventSnapshot, roomID, snapshot)); err != nil {
		log.Printf("Failed to send snapshot to %s in room %s: %v", participantID, roomID, err)
	}
}

// handleConnection runs the read pump and heartbeat until the client goes away.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
		logging.Debugf("Participant %s left room %s", conn.GetParticipantID(), conn.GetRoomID())
	}()

	readTimeout := h.settings.ReadTimeout
	if err := conn.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	roomID := conn.GetRoomID()
	participantID := conn.GetParticipantID()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var message types.Message
		if err := json.Unmarshal(data, &message); err != nil {
			logging.Debugf("Ignoring malformed message from %s in room %s: %v", participantID, roomID, err)
			continue
		}

		if h.sink == nil {
			continue
		}
		if err := h.sink.SendMessage(&message, roomID, participantID); err != nil {
			log.Printf("Failed to queue message from %s in room %s: %v", participantID, roomID, err)
		}
	}
}

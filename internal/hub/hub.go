// Package hub queues inbound client messages and feeds them to the router
// from a single goroutine.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"impostor/internal/logging"
	"impostor/pkg/types"
)

const messageBufferSize = 1000

// MessageRouter validates and dispatches one message.
type MessageRouter interface {
	RouteMessage(ctx context.Context, message *types.Message) error
}

// Presence reports whether a participant currently holds a connection.
type Presence interface {
	IsConnected(roomID, participantID string) bool
}

type Hub struct {
	messageChannel  chan *MessageContext
	shutdownChannel chan struct{}

	presence Presence
	router   MessageRouter

	running bool
	mu      sync.RWMutex
}

// MessageContext carries a message together with the connection it came from.
type MessageContext struct {
	Message       *types.Message
	RoomID        string
	ParticipantID string
	Timestamp     time.Time
}

func NewHub(presence Presence, router MessageRouter) *Hub {
	return &Hub{
		messageChannel:  make(chan *MessageContext, messageBufferSize),
		shutdownChannel: make(chan struct{}),
		presence:        presence,
		router:          router,
	}
}

func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting message hub...")
	go h.run(ctx)

	return nil
}

func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping message hub...")

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}

	return nil
}

// SendMessage queues a message from a connected participant. It never
// blocks; a full queue rejects the message.
func (h *Hub) SendMessage(message *types.Message, roomID, participantID string) error {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return ErrHubNotRunning
	}
	if message == nil {
		return ErrNilMessage
	}

	if h.presence != nil && !h.presence.IsConnected(roomID, participantID) {
		return ErrSenderNotConnected
	}

	messageCtx := &MessageContext{
		Message:       message,
		RoomID:        roomID,
		ParticipantID: participantID,
		Timestamp:     time.Now(),
	}

	select {
	case h.messageChannel <- messageCtx:
		return nil
	default:
		return ErrMessageChannelFull
	}
}

func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case messageCtx := <-h.messageChannel:
			h.handleMessage(ctx, messageCtx)

		case <-h.shutdownChannel:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

// handleMessage stamps the sender identity over anything the client sent and
// routes the message. Rejections are expected traffic and only logged at
// debug level; the session has already notified the sender where needed.
func (h *Hub) handleMessage(ctx context.Context, messageCtx *MessageContext) {
	messageCtx.Message.RoomID = messageCtx.RoomID
	messageCtx.Message.ParticipantID = messageCtx.ParticipantID

	if err := h.router.RouteMessage(ctx, messageCtx.Message); err != nil {
		logging.Debugf("Message %s from %s in room %s not applied: %v",
			messageCtx.Message.Type, messageCtx.ParticipantID, messageCtx.RoomID, err)
		return
	}

	logging.Debugf("Message routed: type=%s from=%s room=%s",
		messageCtx.Message.Type, messageCtx.ParticipantID, messageCtx.RoomID)
}

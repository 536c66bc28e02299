// Package router validates inbound client messages and dispatches them to
// the live session of the sender's room.
package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"impostor/internal/logging"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

type Router struct {
	sessions    interfaces.SessionRegistry
	notifier    interfaces.Notifier
	rateLimiter *RateLimiter
}

// NewRouter creates a router using the default rate limit. notifier receives
// the soft notices for throttled senders and may be nil.
func NewRouter(sessions interfaces.SessionRegistry, notifier interfaces.Notifier) *Router {
	return NewRouterWithLimiter(sessions, notifier, NewRateLimiter())
}

func NewRouterWithLimiter(sessions interfaces.SessionRegistry, notifier interfaces.Notifier, limiter *RateLimiter) *Router {
	return &Router{
		sessions:    sessions,
		notifier:    notifier,
		rateLimiter: limiter,
	}
}

// RouteMessage validates message and hands it to the room's controller.
// The message must already carry the sender's room and participant id.
func (r *Router) RouteMessage(ctx context.Context, message *types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Server-side identity and time; client-supplied values are ignored.
	message.ID = uuid.New().String()
	message.Timestamp = time.Now()

	if err := r.ValidateMessage(message); err != nil {
		return err
	}

	if !r.rateLimiter.Allow(rateKey(message)) {
		r.notifyThrottled(message)
		return ErrRateLimitExceeded
	}

	ctrl, err := r.sessions.Lookup(message.RoomID)
	if err != nil {
		return err
	}

	return r.dispatch(ctrl, message)
}

// ValidateMessage checks the sender attribution and the message body.
func (r *Router) ValidateMessage(message *types.Message) error {
	if message.RoomID == "" || message.ParticipantID == "" {
		return ErrMissingSender
	}
	if !types.IsValidMessageType(message.Type) {
		return ErrInvalidMessageType
	}
	return message.Validate()
}

func (r *Router) dispatch(ctrl interfaces.GameController, message *types.Message) error {
	sender := message.ParticipantID

	switch message.Type {
	case types.MessageTypeSubmitClue:
		return ctrl.SubmitClue(sender, message.Text())
	case types.MessageTypeCastVote:
		return ctrl.CastVote(sender, message.Target())
	case types.MessageTypeDiscussionMessage:
		return ctrl.SendDiscussionMessage(sender, message.Text())
	case types.MessageTypeSkipDiscussion:
		return ctrl.SkipDiscussion(sender)
	default:
		return ErrInvalidMessageType
	}
}

func (r *Router) notifyThrottled(message *types.Message) {
	logging.Debugf("Rate limit exceeded for %s in room %s", message.ParticipantID, message.RoomID)
	if r.notifier == nil {
		return
	}
	r.notifier.SendTo(message.RoomID, message.ParticipantID, types.NewEvent(types.EventActionRejected, message.RoomID, types.ActionRejected{
		Action: message.Type,
		Reason: ErrRateLimitExceeded.Error(),
	}))
}

// StartCleanup prunes idle rate limit entries every interval until ctx ends.
func (r *Router) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.rateLimiter.Cleanup()
			case <-ctx.Done():
				log.Println("Router cleanup stopped")
				return
			}
		}
	}()
}

func rateKey(message *types.Message) string {
	return fmt.Sprintf("%s/%s", message.RoomID, message.ParticipantID)
}

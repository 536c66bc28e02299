package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"impostor/pkg/types"
)

type fakePresence struct {
	connected map[string]bool
}

func (p *fakePresence) IsConnected(roomID, participantID string) bool {
	return p.connected[roomID+"/"+participantID]
}

type recordingRouter struct {
	mu       sync.Mutex
	messages []*types.Message
	err      error
	routed   chan struct{}
	block    chan struct{}
}

func newRecordingRouter() *recordingRouter {
	return &recordingRouter{routed: make(chan struct{}, 2000)}
}

func (r *recordingRouter) RouteMessage(ctx context.Context, message *types.Message) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	r.routed <- struct{}{}
	return r.err
}

func (r *recordingRouter) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.routed:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for message %d", i+1)
		}
	}
}

func setupHub(t *testing.T) (*Hub, *recordingRouter) {
	t.Helper()
	router := newRecordingRouter()
	presence := &fakePresence{connected: map[string]bool{"room1/alice": true, "room1/bob": true}}
	hub := NewHub(presence, router)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	t.Cleanup(func() { _ = hub.Stop() })
	return hub, router
}

func TestHub_StartStop(t *testing.T) {
	hub := NewHub(nil, newRecordingRouter())

	if err := hub.Start(context.Background()); err != nil {
		t.Errorf("Expected no error starting hub, got %v", err)
	}
	if err := hub.Start(context.Background()); err != ErrHubAlreadyRunning {
		t.Errorf("Expected ErrHubAlreadyRunning, got %v", err)
	}
	if err := hub.Stop(); err != nil {
		t.Errorf("Expected no error stopping hub, got %v", err)
	}
	if err := hub.Stop(); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}
}

func TestHub_SendMessageRequiresRunningHub(t *testing.T) {
	hub := NewHub(nil, newRecordingRouter())

	err := hub.SendMessage(&types.Message{Type: types.MessageTypeSkipDiscussion}, "room1", "alice")
	if err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}
}

func TestHub_SendMessageStampsSender(t *testing.T) {
	hub, router := setupHub(t)

	// Clients cannot speak for someone else.
	message := &types.Message{
		RoomID:        "room2",
		ParticipantID: "mallory",
		Type:          types.MessageTypeSubmitClue,
		Content:       map[string]interface{}{"text": "salty"},
	}
	if err := hub.SendMessage(message, "room1", "alice"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	router.wait(t, 1)

	router.mu.Lock()
	defer router.mu.Unlock()
	got := router.messages[0]
	if got.RoomID != "room1" || got.ParticipantID != "alice" {
		t.Errorf("Expected message from alice in room1, got %s in %s", got.ParticipantID, got.RoomID)
	}
}

func TestHub_SendMessageValidation(t *testing.T) {
	hub, _ := setupHub(t)

	if err := hub.SendMessage(nil, "room1", "alice"); err != ErrNilMessage {
		t.Errorf("Expected ErrNilMessage, got %v", err)
	}
	if err := hub.SendMessage(&types.Message{}, "room1", "carol"); err != ErrSenderNotConnected {
		t.Errorf("Expected ErrSenderNotConnected, got %v", err)
	}
}

func TestHub_RoutingErrorsDoNotStopHub(t *testing.T) {
	hub, router := setupHub(t)
	router.err = errors.New("wrong phase")

	for i := 0; i < 3; i++ {
		if err := hub.SendMessage(&types.Message{Type: types.MessageTypeSkipDiscussion}, "room1", "bob"); err != nil {
			t.Fatalf("SendMessage %d failed: %v", i+1, err)
		}
	}
	router.wait(t, 3)
}

func TestHub_PreservesOrder(t *testing.T) {
	hub, router := setupHub(t)

	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		msg := &types.Message{Type: types.MessageTypeDiscussionMessage, Content: map[string]interface{}{"text": text}}
		if err := hub.SendMessage(msg, "room1", "alice"); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}
	router.wait(t, len(texts))

	router.mu.Lock()
	defer router.mu.Unlock()
	for i, text := range texts {
		if router.messages[i].Text() != text {
			t.Errorf("Expected message %d to be %q, got %q", i, text, router.messages[i].Text())
		}
	}
}

func TestHub_FullQueueRejects(t *testing.T) {
	router := newRecordingRouter()
	router.block = make(chan struct{})
	hub := NewHub(nil, router)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	defer func() {
		close(router.block)
		_ = hub.Stop()
	}()

	// One message is held by the blocked router, the rest fill the buffer.
	var full error
	for i := 0; i < messageBufferSize+2; i++ {
		if err := hub.SendMessage(&types.Message{}, "room1", "alice"); err != nil {
			full = err
			break
		}
	}
	if full != ErrMessageChannelFull {
		t.Errorf("Expected ErrMessageChannelFull, got %v", full)
	}
}

func TestHub_ContextCancellationStopsLoop(t *testing.T) {
	router := newRecordingRouter()
	hub := NewHub(nil, router)
	ctx, cancel := context.WithCancel(context.Background())
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	cancel()
	time.Sleep(20 * time.Millisecond)

	// The loop is gone; queued messages are accepted but never routed.
	_ = hub.SendMessage(&types.Message{}, "room1", "alice")
	select {
	case <-router.routed:
		t.Error("Message routed after context cancellation")
	case <-time.After(50 * time.Millisecond):
	}
	_ = hub.Stop()
}

func TestHub_ConcurrentSenders(t *testing.T) {
	hub, router := setupHub(t)

	const senders = 10
	const perSender = 20

	var wg sync.WaitGroup
	wg.Add(senders)
	for i := 0; i < senders; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if err := hub.SendMessage(&types.Message{Type: types.MessageTypeSkipDiscussion}, "room1", "bob"); err != nil {
					t.Errorf("SendMessage failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	router.wait(t, senders*perSender)
}

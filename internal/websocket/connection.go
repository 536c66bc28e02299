package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Settings holds the transport timings of client connections.
type Settings struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

func DefaultSettings() Settings {
	return Settings{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.PingInterval <= 0 {
		s.PingInterval = def.PingInterval
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = def.ReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = def.WriteTimeout
	}
	if s.BufferSize <= 0 {
		s.BufferSize = def.BufferSize
	}
	return s
}

// Connection wraps one participant's websocket. All writes go through a
// single writer goroutine.
type Connection struct {
	conn          *websocket.Conn
	writeCh       chan []byte
	writeTimeout  time.Duration
	participantID string
	roomID        string
	authenticated bool
	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	mu            sync.RWMutex
}

// NewConnection wraps conn using the default settings.
func NewConnection(conn *websocket.Conn) *Connection {
	return newConnection(conn, DefaultSettings())
}

func newConnection(conn *websocket.Conn, settings Settings) *Connection {
	settings = settings.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, settings.BufferSize),
		writeTimeout: settings.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery, waiting up to the write timeout for
// buffer space.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()

	select {
	case c.writeCh <- data:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// enqueue queues an already encoded frame without waiting. Session
// goroutines publish through this path and must never stall on a slow
// client.
func (c *Connection) enqueue(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteBufferFull
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) SetCredentials(participantID, roomID string) error {
	if participantID == "" || roomID == "" {
		return ErrInvalidParameters
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.participantID = participantID
	c.roomID = roomID
	c.authenticated = true
	return nil
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetParticipantID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantID
}

func (c *Connection) GetRoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

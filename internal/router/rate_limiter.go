package router

import (
	"sync"
	"time"
)

const (
	DefaultRateLimit  = 100
	DefaultRateWindow = time.Minute
)

// RateLimiter caps how many messages each sender may route per window.
type RateLimiter struct {
	mu      sync.RWMutex
	limit   int
	window  time.Duration
	clients map[string]*ClientLimit
}

// ClientLimit tracks one sender's fixed window.
type ClientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter allows DefaultRateLimit messages per DefaultRateWindow.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithLimit(DefaultRateLimit, DefaultRateWindow)
}

func NewRateLimiterWithLimit(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*ClientLimit),
	}
}

// Allow records a message from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &ClientLimit{
			messageCount: 1,
			windowStart:  now,
		}
		return true
	}

	if now.Sub(limit.windowStart) >= rl.window {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= rl.limit {
		return false
	}

	limit.messageCount++
	return true
}

// Cleanup forgets senders idle for more than five windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rl.window {
			delete(rl.clients, key)
		}
	}
}

package game

import (
	"context"
	"log"
	"time"

	"impostor/pkg/interfaces"
)

const persistQueueSize = 64

type persistJob struct {
	name string
	run  func(ctx context.Context, store interfaces.HistoryStore) error
}

// persister writes history in submission order on its own goroutine so the
// game loop never waits on storage. Failures are logged and dropped.
type persister struct {
	store   interfaces.HistoryStore
	timeout time.Duration
	jobs    chan persistJob
	done    chan struct{}
	closed  bool
}

func newPersister(store interfaces.HistoryStore, timeout time.Duration) *persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &persister{
		store:   store,
		timeout: timeout,
		done:    make(chan struct{}),
	}

	if store == nil {
		close(p.done)
		return p
	}

	p.jobs = make(chan persistJob, persistQueueSize)
	go p.loop()
	return p
}

// enqueue and close are only called from the owning controller's loop.
func (p *persister) enqueue(name string, run func(ctx context.Context, store interfaces.HistoryStore) error) {
	if p.store == nil || p.closed {
		return
	}

	select {
	case p.jobs <- persistJob{name: name, run: run}:
	default:
		log.Printf("History queue full, dropping %s", name)
	}
}

func (p *persister) close() {
	if p.store == nil || p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

func (p *persister) loop() {
	defer close(p.done)

	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := job.run(ctx, p.store); err != nil {
			log.Printf("Failed to persist %s: %v", job.name, err)
		}
		cancel()
	}
}

package secret

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"impostor/pkg/types"
)

// Provider draws secret items and impostor seats. It keeps no game state;
// the mutex only guards the random source.
type Provider struct {
	mu      sync.Mutex
	catalog []types.Item
	rng     *rand.Rand
}

// NewProvider creates a provider over catalog. A nil rng is seeded from the clock.
func NewProvider(catalog []types.Item, rng *rand.Rand) (*Provider, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	items := make([]types.Item, len(catalog))
	copy(items, catalog)

	return &Provider{
		catalog: items,
		rng:     rng,
	}, nil
}

// PickItem returns a uniformly random item from the catalog.
func (p *Provider) PickItem() types.Item {
	p.mu.Lock()
	item := p.catalog[p.rng.Intn(len(p.catalog))]
	p.mu.Unlock()

	hints := make([]string, len(item.Hints))
	copy(hints, item.Hints)
	item.Hints = hints
	return item
}

// PickImpostors returns sorted, distinct seat indices in [0, participantCount).
// The result size is min(impostorCount, participantCount-1), so at least one
// informed participant always remains.
func (p *Provider) PickImpostors(participantCount, impostorCount int) ([]int, error) {
	if participantCount < 2 {
		return nil, ErrTooFewParticipants
	}
	if impostorCount < 1 {
		return nil, ErrInvalidImpostorCount
	}

	size := impostorCount
	if size > participantCount-1 {
		size = participantCount - 1
	}

	p.mu.Lock()
	seats := p.rng.Perm(participantCount)[:size]
	p.mu.Unlock()

	sort.Ints(seats)
	return seats, nil
}

// Size returns the number of items in the catalog.
func (p *Provider) Size() int {
	return len(p.catalog)
}

package memory

import (
	"context"
	"sync"
	"time"
)

// Presence records which WebSocket subscribers are live, in process.
type Presence struct {
	mu    sync.RWMutex
	clock func() time.Time
	seen  map[string]time.Time
}

func NewPresence() *Presence {
	return &Presence{clock: time.Now, seen: make(map[string]time.Time)}
}

func (p *Presence) Mark(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[id] = p.clock()
	return nil
}

func (p *Presence) Clear(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, id)
	return nil
}

func (p *Presence) Count(_ context.Context) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.seen), nil
}

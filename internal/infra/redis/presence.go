package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "quiz:presence:"

// Presence mirrors live WebSocket subscribers into Redis keys that expire on their
// own, so operators can count live clients without asking the process.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

// Mark sets or refreshes the subscriber's liveness key.
func (p *Presence) Mark(ctx context.Context, id string) error {
	return p.client.Set(ctx, p.key(id), time.Now().UTC().Format(time.RFC3339), p.ttl).Err()
}

func (p *Presence) Clear(ctx context.Context, id string) error {
	return p.client.Del(ctx, p.key(id)).Err()
}

// Count scans the live keys.
func (p *Presence) Count(ctx context.Context) (int, error) {
	n := 0
	iter := p.client.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (p *Presence) key(id string) string {
	return presencePrefix + id
}

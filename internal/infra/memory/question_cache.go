package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const bankKey = "bank"

// QuestionCache keeps the question bank in process with a TTL to avoid repeated store hits.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
	// generation guards against a slow load refilling the cache after an invalidation
	generation uint64
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		if qs, ok := c.cached(); ok {
			return qs, nil
		}
		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.questions = qs
			c.expiresAt = c.clock().Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached bank so the next read reloads it.
func (c *QuestionCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.questions = nil
	c.expiresAt = time.Time{}
	c.generation++
	c.mu.Unlock()
	c.sf.Forget(bankKey)
	return nil
}

func (c *QuestionCache) cached() ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.questions != nil && c.expiresAt.After(c.clock()) {
		return c.questions, true
	}
	return nil, false
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

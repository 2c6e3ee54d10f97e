package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const (
	questionsKey  = "quiz:questions"
	generationKey = "quiz:questions:gen"
)

// QuestionCache caches the question bank in Redis as one JSON value and falls back
// to a loader on cache miss.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		gen, err := c.generation(ctx)
		if err != nil {
			return nil, err
		}
		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(qs)
		if err != nil {
			return nil, fmt.Errorf("marshal questions: %w", err)
		}
		// best-effort: a failed write only costs a reload next time
		_ = c.store(ctx, gen, raw)
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate deletes the cached bank so the next read reloads it. Bumping the
// generation stops a load that started earlier from writing its copy back.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	c.sf.Forget(questionsKey)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, questionsKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate questions: %w", err)
	}
	return nil
}

func (c *QuestionCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read questions generation: %w", err)
	}
	return gen, nil
}

// store writes raw only while the generation is still gen.
func (c *QuestionCache) store(ctx context.Context, gen int64, raw []byte) error {
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, questionsKey, raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, generationKey)
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; other errors degrade to the loader
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

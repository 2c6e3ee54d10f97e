package memory

import (
	"context"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: seededStore(t)}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.Questions(context.Background()); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	qs, err := cache.Questions(context.Background())
	if err != nil {
		t.Fatalf("get questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if len(qs) != 1 || qs[0].CorrectAnswer != "B" {
		t.Fatalf("unexpected bank %+v", qs)
	}
}

func TestQuestionCacheInvalidateReloads(t *testing.T) {
	loader := &countingLoader{QuestionLoader: seededStore(t)}
	cache := NewQuestionCache(loader, time.Minute)

	_, _ = cache.Questions(context.Background())
	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.Questions(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: seededStore(t)}
	cache := NewQuestionCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.Questions(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = cache.Questions(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	text := "What is 2 + 2?"
	if err := store.CreateQuestion(context.Background(), &domain.Question{
		QuestionText:  &text,
		OptionA:       "3",
		OptionB:       "4",
		OptionC:       "5",
		OptionD:       "6",
		CorrectAnswer: "B",
		Difficulty:    domain.DifficultyEasy,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

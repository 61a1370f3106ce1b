package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

func TestCatalogCacheCaches(t *testing.T) {
	loader := &countingLoader{Catalog: sampleStore(t)}
	cache := NewCatalogCache(loader, time.Minute)

	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	q, err := cache.Question(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	// Callers must not be able to corrupt the cached copy.
	q.Answers[0].IsCorrect = false
	again, _ := cache.Question(context.Background(), "q1")
	if !again.Answers[0].IsCorrect {
		t.Fatalf("cached question was mutated through a returned copy")
	}
}

func TestCatalogCacheExpires(t *testing.T) {
	loader := &countingLoader{Catalog: sampleStore(t)}
	cache := NewCatalogCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.TrailQuestions(context.Background(), "t1"); err != nil {
		t.Fatalf("trail questions: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.TrailQuestions(context.Background(), "t1"); err != nil {
		t.Fatalf("trail questions: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestCatalogCacheDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{Catalog: sampleStore(t)}
	cache := NewCatalogCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.Answer(context.Background(), "missing"); !errors.Is(err, domain.ErrAnswerNotFound) {
			t.Fatalf("expected answer not found, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected misses to reach the loader, got %d calls", loader.calls)
	}
}

type countingLoader struct {
	app.Catalog
	calls int
}

func (l *countingLoader) Question(ctx context.Context, id string) (domain.Question, error) {
	l.calls++
	return l.Catalog.Question(ctx, id)
}

func (l *countingLoader) Answer(ctx context.Context, id string) (domain.Answer, error) {
	l.calls++
	return l.Catalog.Answer(ctx, id)
}

func (l *countingLoader) TrailQuestions(ctx context.Context, id string) ([]domain.Question, error) {
	l.calls++
	return l.Catalog.TrailQuestions(ctx, id)
}

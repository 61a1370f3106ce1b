package app_test

import (
	"context"
	"errors"
	"testing"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

func TestTrailProgressTracksSubmissions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)
	progress := app.NewProgressService(store, store, nil)

	p, err := progress.TrailProgress(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	want := domain.TrailProgress{TrailID: "t1", TotalQuestions: 2, TotalPoints: 15, MissingPoints: 15}
	if p != want {
		t.Fatalf("expected %+v, got %+v", want, p)
	}

	previous := 0
	steps := []struct{ question, answer string }{{"q1", "a2"}, {"q1", "a1"}, {"q2", "b2"}}
	for _, step := range steps {
		if _, err := ledger.SubmitAnswer(ctx, "u1", step.question, step.answer); err != nil {
			t.Fatalf("submit %s: %v", step.answer, err)
		}
		p, _ = progress.TrailProgress(ctx, "u1", "t1")
		if p.AnsweredQuestions < previous {
			t.Fatalf("answered questions decreased from %d to %d", previous, p.AnsweredQuestions)
		}
		if p.Completed != (p.AnsweredQuestions == p.TotalQuestions) {
			t.Fatalf("completed flag out of sync: %+v", p)
		}
		previous = p.AnsweredQuestions
	}

	want = domain.TrailProgress{
		TrailID:           "t1",
		TotalQuestions:    2,
		AnsweredQuestions: 2,
		CorrectAnswers:    1,
		TotalPoints:       15,
		PointsEarned:      10,
		MissingPoints:     5,
		Completed:         true,
	}
	if p != want {
		t.Fatalf("expected %+v, got %+v", want, p)
	}
}

func TestTrailProgressEmptyTrailNeverCompletes(t *testing.T) {
	store := newTestStore(t)
	progress := app.NewProgressService(store, store, nil)

	for _, trailID := range []string{"t-empty", "unknown"} {
		p, err := progress.TrailProgress(context.Background(), "u1", trailID)
		if err != nil {
			t.Fatalf("progress %s: %v", trailID, err)
		}
		if p.Completed || p.TotalQuestions != 0 {
			t.Fatalf("expected zero progress for %s, got %+v", trailID, p)
		}
	}
}

func TestTrailProgressClampsMissingPoints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	progress := app.NewProgressService(store, &inflatedStore{Store: store}, nil)

	p, err := progress.TrailProgress(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.PointsEarned != 40 || p.MissingPoints != 0 {
		t.Fatalf("expected earned 40 with no missing points, got %+v", p)
	}
}

func TestTrailProgressUsesVersionedCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cache := newFakeProgressCache()
	ledger := app.NewLedgerService(store, store, app.WithProgressCache(cache))
	progress := app.NewProgressService(store, store, cache)

	first, _ := progress.TrailProgress(ctx, "u1", "t1")
	if cache.sets != 1 {
		t.Fatalf("expected computed value to be cached, got %d sets", cache.sets)
	}
	if again, _ := progress.TrailProgress(ctx, "u1", "t1"); again != first || cache.hits != 1 {
		t.Fatalf("expected cache hit, got %+v (hits=%d)", again, cache.hits)
	}

	if _, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	p, _ := progress.TrailProgress(ctx, "u1", "t1")
	if p.PointsEarned != 10 {
		t.Fatalf("expected fresh progress after ledger write, got %+v", p)
	}
}

func TestTrailProgressSurvivesCacheFailure(t *testing.T) {
	store := newTestStore(t)
	cache := newFakeProgressCache()
	cache.err = errors.New("redis down")
	progress := app.NewProgressService(store, store, cache)

	p, err := progress.TrailProgress(context.Background(), "u1", "t1")
	if err != nil || p.TotalQuestions != 2 {
		t.Fatalf("expected computed progress, got %+v, %v", p, err)
	}
}

// inflatedStore reports more earned points than the trail is now worth.
type inflatedStore struct {
	app.Store
}

func (s *inflatedStore) EntriesForTrail(context.Context, string, string) ([]domain.LedgerEntry, error) {
	return []domain.LedgerEntry{
		{QuestionID: "q1", IsCorrect: true, PointsEarned: 30},
		{QuestionID: "q2", IsCorrect: true, PointsEarned: 10},
	}, nil
}

type fakeProgressCache struct {
	versions map[string]int
	values   map[string]domain.TrailProgress
	hits     int
	sets     int
	err      error
}

func newFakeProgressCache() *fakeProgressCache {
	return &fakeProgressCache{versions: map[string]int{}, values: map[string]domain.TrailProgress{}}
}

func (c *fakeProgressCache) key(userID, trailID, version string) string {
	return userID + "/" + trailID + "@" + version
}

func (c *fakeProgressCache) version(userID, trailID string) string {
	return string(rune('0' + c.versions[userID+"/"+trailID]))
}

func (c *fakeProgressCache) Get(_ context.Context, userID, trailID string) (domain.TrailProgress, string, bool, error) {
	if c.err != nil {
		return domain.TrailProgress{}, "", false, c.err
	}
	v := c.version(userID, trailID)
	p, ok := c.values[c.key(userID, trailID, v)]
	if ok {
		c.hits++
	}
	return p, v, ok, nil
}

func (c *fakeProgressCache) Set(_ context.Context, userID, trailID, version string, p domain.TrailProgress) error {
	c.sets++
	c.values[c.key(userID, trailID, version)] = p
	return nil
}

func (c *fakeProgressCache) Invalidate(_ context.Context, userID, trailID string) error {
	c.versions[userID+"/"+trailID]++
	return nil
}

func TestTrailQuestionsResolvesImages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	progress := app.NewProgressService(store, store, nil)

	questions, err := progress.TrailQuestions(ctx, "t1", prefixAssets("http://minio/qcm/"))
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 || questions[0].ImageURL != "http://minio/qcm/trail-1/img.png" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if questions[1].ImageURL != "" {
		t.Fatalf("expected no url without image, got %q", questions[1].ImageURL)
	}

	questions, err = progress.TrailQuestions(ctx, "t1", nil)
	if err != nil || questions[0].ImageURL != "" {
		t.Fatalf("expected no urls without resolver, got %+v, %v", questions, err)
	}

	questions, err = progress.TrailQuestions(ctx, "unknown", nil)
	if err != nil || len(questions) != 0 {
		t.Fatalf("expected no questions for unknown trail, got %+v, %v", questions, err)
	}
}

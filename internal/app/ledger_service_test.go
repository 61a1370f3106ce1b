package app_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
	"trailpoints/internal/infra/memory"
	"trailpoints/internal/seed"
)

func TestSubmitWrongThenRightThenLocked(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)

	res, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a2")
	if err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if res.IsCorrect || res.PointsEarned != 0 || res.Balance != 0 {
		t.Fatalf("expected wrong answer with no credit, got %+v", res)
	}
	if res.Message != "Wrong answer. The correct answer was: Léonard de Vinci" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	res, err = ledger.SubmitAnswer(ctx, "u1", "q1", "a1")
	if err != nil {
		t.Fatalf("submit right: %v", err)
	}
	if !res.IsCorrect || res.PointsEarned != 10 || res.Balance != 10 {
		t.Fatalf("expected 10 points credited, got %+v", res)
	}
	if res.Message != "Correct answer! +10 points" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	for _, answerID := range []string{"a1", "a2"} {
		_, err = ledger.SubmitAnswer(ctx, "u1", "q1", answerID)
		var done *domain.AlreadyCompletedError
		if !errors.As(err, &done) || done.QuestionID != "q1" {
			t.Fatalf("expected already completed, got %v", err)
		}
	}
	if balance, _ := ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected balance to stay at 10, got %d", balance)
	}
}

func TestSubmitWrongTwiceKeepsZeroEarned(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)

	for i := 0; i < 2; i++ {
		if _, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a2"); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	entries, _ := ledger.ListUserAnswers(ctx, "u1")
	if len(entries) != 1 || entries[0].IsCorrect || entries[0].PointsEarned != 0 {
		t.Fatalf("expected a single incorrect entry, got %+v", entries)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)

	cases := []struct {
		name                string
		user, question, ans string
		want                error
	}{
		{"unknown question", "u1", "nope", "a1", domain.ErrQuestionNotFound},
		{"unknown user", "ghost", "q1", "a1", domain.ErrUserNotFound},
		{"unknown answer", "u1", "q1", "nope", domain.ErrAnswerNotFound},
		{"answer of another question", "u1", "q1", "b1", domain.ErrMismatchedAnswer},
	}
	for _, tc := range cases {
		if _, err := ledger.SubmitAnswer(ctx, tc.user, tc.question, tc.ans); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if entries, _ := ledger.ListUserAnswers(ctx, "u1"); len(entries) != 0 {
		t.Fatalf("rejected submissions must not write, got %+v", entries)
	}
}

func TestSubmitWithoutFlaggedAnswerDegradesMessage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	// Imported directly to bypass fixture validation.
	_ = store.Import(ctx, seed.Dataset{Questions: []domain.Question{{
		ID: "q9", TrailID: "t2", Point: 3,
		Answers: []domain.Answer{{ID: "z1", QuestionID: "q9", Text: "?"}},
	}}})
	ledger := app.NewLedgerService(store, store)

	res, err := ledger.SubmitAnswer(ctx, "u1", "q9", "z1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Message != "Wrong answer." || res.CorrectAnswer != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConcurrentCorrectSubmissionsCreditOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)

	var g errgroup.Group
	results := make([]error, 20)
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = ledger.SubmitAnswer(ctx, "u1", "q1", "a1")
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyCompleted):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", ok)
	}
	if balance, _ := ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected one credit of 10, got %d", balance)
	}
}

func TestSubmitNotifiesCollaborators(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	hub := app.NewHub()
	invalidator := &recordingInvalidator{}
	observer := &recordingObserver{}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := app.NewLedgerService(store, store,
		app.WithHub(hub),
		app.WithProgressCache(invalidator),
		app.WithObserver(observer),
		app.WithClock(func() time.Time { return at }))

	events, cancel := hub.Subscribe("u1")
	defer cancel()

	if _, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ev := <-events
	if ev.Balance != 10 || ev.Delta != 10 || ev.Reason != domain.ReasonQuizCredit || !ev.At.Equal(at) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(invalidator.calls) != 1 || invalidator.calls[0] != "u1/t1" {
		t.Fatalf("expected invalidation of u1/t1, got %v", invalidator.calls)
	}

	_, _ = ledger.SubmitAnswer(ctx, "u1", "q1", "a1")
	if len(invalidator.calls) != 1 {
		t.Fatalf("rejected submission must not invalidate, got %v", invalidator.calls)
	}
	want := []string{"correct:10", "already_completed:0"}
	if len(observer.answers) != 2 || observer.answers[0] != want[0] || observer.answers[1] != want[1] {
		t.Fatalf("expected outcomes %v, got %v", want, observer.answers)
	}
}

// cancelAfterCommit drops the caller's context as soon as the unit of work commits.
type cancelAfterCommit struct {
	*memory.Store
	cancel context.CancelFunc
}

func (c cancelAfterCommit) WithUser(ctx context.Context, userID string, fn func(tx app.UserTx) error) error {
	err := c.Store.WithUser(ctx, userID, fn)
	c.cancel()
	return err
}

func TestSubmitInvalidatesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newTestStore(t)
	invalidator := &recordingInvalidator{}
	ledger := app.NewLedgerService(store, cancelAfterCommit{Store: store, cancel: cancel},
		app.WithProgressCache(invalidator))

	if _, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("expected the caller context to be cancelled")
	}
	if len(invalidator.calls) != 1 || invalidator.calls[0] != "u1/t1" {
		t.Fatalf("committed answer must still invalidate progress, got %v", invalidator.calls)
	}
}

func TestTrailHistoryDefaultsLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := app.NewLedgerService(store, store)

	if _, err := ledger.SubmitAnswer(ctx, "u1", "q1", "a2"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	history, err := ledger.TrailHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].TrailID != "t1" || history[0].TrailName != "Peintres" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	err := store.Import(context.Background(), seed.Dataset{
		Users: []domain.User{{ID: "u1"}, {ID: "u2", Points: 10}},
		Places: []domain.Place{
			{ID: "p1", Name: "Louvre", Type: domain.PlaceTypeArt, CreatedAt: now},
			{ID: "p2", Name: "Orsay", Type: domain.PlaceTypeArt, CreatedAt: now.Add(-time.Hour)},
			{ID: "p3", Name: "Opéra", Type: domain.PlaceTypeMusique, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "p4", Name: "Notre-Dame", Type: domain.PlaceTypePatrimoine, CreatedAt: now.Add(-3 * time.Hour)},
		},
		Trails: []domain.Trail{
			{ID: "t1", PlaceID: "p1", Name: "Peintres"},
			{ID: "t2", PlaceID: "p3", Name: "Compositeurs"},
			{ID: "t-empty", PlaceID: "p4", Name: "Vide"},
		},
		Questions: []domain.Question{
			{ID: "q1", TrailID: "t1", Image: "trail-1/img.png", Point: 10, Answers: []domain.Answer{
				{ID: "a1", QuestionID: "q1", Text: "Léonard de Vinci", IsCorrect: true},
				{ID: "a2", QuestionID: "q1", Text: "Monet"},
			}},
			{ID: "q2", TrailID: "t1", Point: 5, Answers: []domain.Answer{
				{ID: "b1", QuestionID: "q2", Text: "1793", IsCorrect: true},
				{ID: "b2", QuestionID: "q2", Text: "1889"},
			}},
		},
		Rewards: []domain.Reward{
			{ID: "r1", Title: "Entrée gratuite", Cost: 15, Image: "rewards/r1.png"},
			{ID: "r2", Title: "Affiche", Cost: 5},
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return store
}

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userID, trailID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.calls = append(r.calls, userID+"/"+trailID)
	return nil
}

type recordingObserver struct {
	answers   []string
	purchases []string
}

func (r *recordingObserver) AnswerSubmitted(outcome string, points int) {
	r.answers = append(r.answers, outcome+":"+strconv.Itoa(points))
}

func (r *recordingObserver) RewardPurchased(outcome string, cost int) {
	r.purchases = append(r.purchases, outcome+":"+strconv.Itoa(cost))
}

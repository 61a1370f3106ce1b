package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trailpoints/internal/domain"
)

// Catalog reads quiz content (from cache/backing store).
type Catalog interface {
	Question(ctx context.Context, questionID string) (domain.Question, error)
	Answer(ctx context.Context, answerID string) (domain.Answer, error)
	TrailQuestions(ctx context.Context, trailID string) ([]domain.Question, error)
}

// UserTx is the unit of work handed out by Store.WithUser. Every mutation of
// the user's balance and ledger goes through it.
type UserTx interface {
	User() domain.User
	Entry(ctx context.Context, questionID string) (domain.LedgerEntry, bool, error)
	SaveEntry(ctx context.Context, entry *domain.LedgerEntry) error
	// AddPoints applies delta and returns the new balance. A delta that would
	// take the balance below zero fails with ErrInsufficientBalance.
	AddPoints(ctx context.Context, delta int) (int, error)
	Reward(ctx context.Context, rewardID string) (domain.Reward, error)
	AddRedemption(ctx context.Context, redemption *domain.Redemption) error
}

// Store abstracts how users, ledger entries and redemptions are persisted.
type Store interface {
	// WithUser runs fn while holding the user exclusively. Writes made through
	// the tx are committed only when fn returns nil.
	WithUser(ctx context.Context, userID string, fn func(tx UserTx) error) error
	User(ctx context.Context, userID string) (domain.User, error)
	EntriesForUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
	EntriesForTrail(ctx context.Context, userID, trailID string) ([]domain.LedgerEntry, error)
	TrailHistory(ctx context.Context, userID string, limit int) ([]domain.TrailHistoryItem, error)
}

// ProgressInvalidator is notified after every committed ledger write.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, userID, trailID string) error
}

const invalidateTimeout = 2 * time.Second

// LedgerService scores answer submissions and credits the balance.
type LedgerService struct {
	catalog  Catalog
	store    Store
	hub      *Hub
	progress ProgressInvalidator
	observer Observer
	log      *zap.Logger
	now      func() time.Time
}

// Option configures the services of this package.
type Option func(*options)

type options struct {
	hub      *Hub
	progress ProgressInvalidator
	observer Observer
	log      *zap.Logger
	now      func() time.Time
	assets   AssetResolver
}

func WithHub(h *Hub) Option {
	return func(o *options) { o.hub = h }
}

func WithProgressCache(p ProgressInvalidator) Option {
	return func(o *options) { o.progress = p }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithAssets(a AssetResolver) Option {
	return func(o *options) { o.assets = a }
}

func buildOptions(opts []Option) options {
	o := options{
		observer: nopObserver{},
		log:      zap.NewNop(),
		now:      time.Now,
		assets:   noAssets{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewLedgerService(catalog Catalog, store Store, opts ...Option) *LedgerService {
	o := buildOptions(opts)
	return &LedgerService{
		catalog:  catalog,
		store:    store,
		hub:      o.hub,
		progress: o.progress,
		observer: o.observer,
		log:      o.log,
		now:      o.now,
	}
}

// SubmitAnswer records an answer for a user and credits the question's points
// the first time it flips to correct. A question already answered correctly is
// locked and rejected with AlreadyCompletedError.
func (s *LedgerService) SubmitAnswer(ctx context.Context, userID, questionID, answerID string) (domain.AnswerResult, error) {
	result, err := s.submit(ctx, userID, questionID, answerID)
	s.observer.AnswerSubmitted(outcome(err, result.IsCorrect), result.PointsEarned)
	if err != nil {
		s.log.Debug("answer rejected",
			zap.String("user_id", userID),
			zap.String("question_id", questionID),
			zap.Error(err))
		return domain.AnswerResult{}, err
	}
	return result, nil
}

func (s *LedgerService) submit(ctx context.Context, userID, questionID, answerID string) (domain.AnswerResult, error) {
	question, err := s.catalog.Question(ctx, questionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	var result domain.AnswerResult
	err = s.store.WithUser(ctx, userID, func(tx UserTx) error {
		entry, found, err := tx.Entry(ctx, questionID)
		if err != nil {
			return err
		}
		if found && entry.IsCorrect {
			return &domain.AlreadyCompletedError{QuestionID: questionID}
		}

		selected, err := s.selectAnswer(ctx, question, answerID)
		if err != nil {
			return err
		}

		correct, points := scoreSubmission(question, selected)
		now := s.now()
		if !found {
			entry = domain.LedgerEntry{
				UserID:     userID,
				QuestionID: questionID,
				CreatedAt:  now,
			}
		}
		entry.AnswerID = selected.ID
		entry.IsCorrect = correct
		entry.PointsEarned = points
		entry.UpdatedAt = now
		if err := tx.SaveEntry(ctx, &entry); err != nil {
			return err
		}

		balance := tx.User().Points
		if points > 0 {
			balance, err = tx.AddPoints(ctx, points)
			if err != nil {
				return err
			}
		}

		result = domain.AnswerResult{
			QuestionID:    questionID,
			IsCorrect:     correct,
			PointsEarned:  points,
			CorrectAnswer: question.CorrectAnswer(),
			Balance:       balance,
		}
		result.Message = answerMessage(result)
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	s.afterWrite(ctx, userID, question.TrailID)
	if result.PointsEarned > 0 {
		s.log.Info("quiz points credited",
			zap.String("user_id", userID),
			zap.String("question_id", questionID),
			zap.Int("points", result.PointsEarned),
			zap.Int("balance", result.Balance))
		if s.hub != nil {
			s.hub.Publish(domain.BalanceEvent{
				UserID:  userID,
				Balance: result.Balance,
				Delta:   result.PointsEarned,
				Reason:  domain.ReasonQuizCredit,
				At:      s.now(),
			})
		}
	}
	return result, nil
}

// selectAnswer resolves answerID against the question, telling an unknown
// answer apart from one that belongs to another question.
func (s *LedgerService) selectAnswer(ctx context.Context, question domain.Question, answerID string) (domain.Answer, error) {
	for _, a := range question.Answers {
		if a.ID == answerID {
			return a, nil
		}
	}
	answer, err := s.catalog.Answer(ctx, answerID)
	if err != nil {
		return domain.Answer{}, err
	}
	if answer.QuestionID != question.ID {
		return domain.Answer{}, domain.ErrMismatchedAnswer
	}
	// The catalog copy of the question predates this answer.
	return answer, nil
}

func (s *LedgerService) afterWrite(ctx context.Context, userID, trailID string) {
	if s.progress == nil {
		return
	}
	// The ledger is already committed: invalidate even if the caller has gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.progress.Invalidate(ctx, userID, trailID); err != nil {
		s.log.Warn("progress cache invalidation failed",
			zap.String("user_id", userID),
			zap.String("trail_id", trailID),
			zap.Error(err))
	}
}

// ListUserAnswers returns every ledger entry of the user.
func (s *LedgerService) ListUserAnswers(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	return s.store.EntriesForUser(ctx, userID)
}

// TrailHistory lists the trails the user played, most recent first.
func (s *LedgerService) TrailHistory(ctx context.Context, userID string, limit int) ([]domain.TrailHistoryItem, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.store.TrailHistory(ctx, userID, limit)
}

// Balance returns the user's current point balance.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

// scoreSubmission returns (correct, points) for the selected answer.
func scoreSubmission(question domain.Question, selected domain.Answer) (bool, int) {
	if selected.IsCorrect {
		return true, question.Point
	}
	return false, 0
}

func answerMessage(r domain.AnswerResult) string {
	if r.IsCorrect {
		return fmt.Sprintf("Correct answer! +%d points", r.PointsEarned)
	}
	if r.CorrectAnswer == nil {
		return "Wrong answer."
	}
	return fmt.Sprintf("Wrong answer. The correct answer was: %s", r.CorrectAnswer.Text)
}

func outcome(err error, correct bool) string {
	switch {
	case err == nil && correct:
		return "correct"
	case err == nil:
		return "incorrect"
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return "already_completed"
	default:
		return string(domain.Kind(err))
	}
}

package memory

import (
	"context"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
	"trailpoints/internal/seed"
)

// Store is an in-memory implementation of app.Store, app.Catalog,
// app.RewardStore and app.PlaceStore. Balance writes for one user are
// serialized by a keyed lock.
type Store struct {
	locks *KeyedLocker

	mu          sync.RWMutex
	users       map[string]domain.User
	places      map[string]domain.Place
	favorites   []domain.Favorite
	trails      map[string]domain.Trail
	questions   map[string]domain.Question
	trailOrder  map[string][]string
	answers     map[string]domain.Answer
	entries     map[ledgerKey]domain.LedgerEntry
	rewards     map[string]domain.Reward
	redemptions []domain.Redemption
}

type ledgerKey struct {
	userID     string
	questionID string
}

func NewStore() *Store {
	return &Store{
		locks:      NewKeyedLocker(),
		users:      make(map[string]domain.User),
		places:     make(map[string]domain.Place),
		trails:     make(map[string]domain.Trail),
		questions:  make(map[string]domain.Question),
		trailOrder: make(map[string][]string),
		answers:    make(map[string]domain.Answer),
		entries:    make(map[ledgerKey]domain.LedgerEntry),
		rewards:    make(map[string]domain.Reward),
	}
}

// Import adds a seed dataset, replacing rows with the same IDs. Existing users
// keep their balance.
func (s *Store) Import(_ context.Context, ds seed.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range ds.Users {
		if prev, ok := s.users[u.ID]; ok {
			u.Points = prev.Points
		}
		s.users[u.ID] = u
	}
	for _, p := range ds.Places {
		s.places[p.ID] = p
	}
	for _, f := range ds.Favorites {
		if !slices.ContainsFunc(s.favorites, func(x domain.Favorite) bool {
			return x.UserID == f.UserID && x.PlaceID == f.PlaceID
		}) {
			s.favorites = append(s.favorites, f)
		}
	}
	for _, t := range ds.Trails {
		s.trails[t.ID] = t
	}
	for _, q := range ds.Questions {
		if _, ok := s.questions[q.ID]; !ok {
			s.trailOrder[q.TrailID] = append(s.trailOrder[q.TrailID], q.ID)
		}
		s.questions[q.ID] = q
		for _, a := range q.Answers {
			s.answers[a.ID] = a
		}
	}
	for _, r := range ds.Rewards {
		s.rewards[r.ID] = r
	}
	return nil
}

// Catalog reads.

func (s *Store) Question(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) Answer(_ context.Context, answerID string) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[answerID]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	return a, nil
}

func (s *Store) TrailQuestions(_ context.Context, trailID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.trailOrder[trailID]
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneQuestion(s.questions[id]))
	}
	return out, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Answers = slices.Clone(q.Answers)
	return q
}

// Ledger and balance.

func (s *Store) WithUser(ctx context.Context, userID string, fn func(tx app.UserTx) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	user, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	tx := &userTx{store: s, user: user, entries: make(map[string]domain.LedgerEntry)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Only the balance belongs to the tx; profile fields may have been reseeded.
	user = s.users[userID]
	user.Points = tx.user.Points
	s.users[userID] = user
	for qID, e := range tx.entries {
		s.entries[ledgerKey{userID: userID, questionID: qID}] = e
	}
	s.redemptions = append(s.redemptions, tx.redemptions...)
	return nil
}

func (s *Store) User(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) EntriesForUser(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for k, e := range s.entries {
		if k.userID == userID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *Store) EntriesForTrail(_ context.Context, userID, trailID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, qID := range s.trailOrder[trailID] {
		if e, ok := s.entries[ledgerKey{userID: userID, questionID: qID}]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) TrailHistory(_ context.Context, userID string, limit int) ([]domain.TrailHistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := make(map[string]time.Time)
	for k, e := range s.entries {
		if k.userID != userID {
			continue
		}
		trailID := s.questions[k.questionID].TrailID
		if e.UpdatedAt.After(last[trailID]) {
			last[trailID] = e.UpdatedAt
		}
	}
	out := make([]domain.TrailHistoryItem, 0, len(last))
	for trailID, at := range last {
		trail := s.trails[trailID]
		out = append(out, domain.TrailHistoryItem{
			TrailID:      trailID,
			TrailName:    trail.Name,
			PlaceID:      trail.PlaceID,
			PlaceName:    s.places[trail.PlaceID].Name,
			LastPlayedAt: at,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastPlayedAt.Equal(out[j].LastPlayedAt) {
			return out[i].LastPlayedAt.After(out[j].LastPlayedAt)
		}
		return out[i].TrailID < out[j].TrailID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortEntries(entries []domain.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].QuestionID < entries[j].QuestionID
	})
}

// Rewards.

func (s *Store) Rewards(_ context.Context) ([]domain.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reward, 0, len(s.rewards))
	for _, r := range s.rewards {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) RedemptionsForUser(_ context.Context, userID string) ([]domain.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Redemption
	for i := len(s.redemptions) - 1; i >= 0; i-- {
		r := s.redemptions[i]
		if r.UserID != userID {
			continue
		}
		if reward, ok := s.rewards[r.RewardID]; ok {
			r.Reward = &reward
		}
		out = append(out, r)
	}
	return out, nil
}

// Places.

func (s *Store) FavoritePlaces(_ context.Context, userID string) ([]domain.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Place
	for _, f := range s.favorites {
		if f.UserID != userID {
			continue
		}
		if p, ok := s.places[f.PlaceID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) PlacesByTypes(_ context.Context, types []domain.PlaceType, excludeIDs []string, limit int) ([]domain.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Place
	for _, p := range s.places {
		if len(types) > 0 && !slices.Contains(types, p.Type) {
			continue
		}
		if slices.Contains(excludeIDs, p.ID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RandomPlaces(_ context.Context, limit int) ([]domain.Place, error) {
	s.mu.RLock()
	out := make([]domain.Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	s.mu.RUnlock()
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// userTx stages writes until WithUser commits them.
type userTx struct {
	store       *Store
	user        domain.User
	entries     map[string]domain.LedgerEntry
	redemptions []domain.Redemption
}

func (tx *userTx) User() domain.User { return tx.user }

func (tx *userTx) Entry(_ context.Context, questionID string) (domain.LedgerEntry, bool, error) {
	if e, ok := tx.entries[questionID]; ok {
		return e, true, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	e, ok := tx.store.entries[ledgerKey{userID: tx.user.ID, questionID: questionID}]
	return e, ok, nil
}

func (tx *userTx) SaveEntry(_ context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	tx.entries[entry.QuestionID] = *entry
	return nil
}

func (tx *userTx) AddPoints(_ context.Context, delta int) (int, error) {
	if tx.user.Points+delta < 0 {
		return tx.user.Points, &domain.InsufficientBalanceError{Balance: tx.user.Points, Cost: -delta}
	}
	tx.user.Points += delta
	return tx.user.Points, nil
}

func (tx *userTx) Reward(_ context.Context, rewardID string) (domain.Reward, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	r, ok := tx.store.rewards[rewardID]
	if !ok {
		return domain.Reward{}, domain.ErrRewardNotFound
	}
	return r, nil
}

func (tx *userTx) AddRedemption(_ context.Context, r *domain.Redemption) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	tx.redemptions = append(tx.redemptions, *r)
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

// Store persists users, the answer ledger, rewards and places with bun.
// Balance changes run inside a transaction holding the user row lock.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithUser(ctx context.Context, userID string, fn func(tx app.UserTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var user userRow
		err := tx.NewSelect().Model(&user).Where("u.id = ?", userID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		return fn(&userTx{tx: tx, user: user.toDomain()})
	})
}

func (s *Store) User(ctx context.Context, userID string) (domain.User, error) {
	var user userRow
	err := s.db.NewSelect().Model(&user).Where("u.id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user.toDomain(), nil
}

func (s *Store) EntriesForUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	var rows []ledgerRow
	err := s.db.NewSelect().Model(&rows).
		Where("le.user_id = ?", userID).
		OrderExpr("le.updated_at DESC, le.question_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return toEntries(rows), nil
}

func (s *Store) EntriesForTrail(ctx context.Context, userID, trailID string) ([]domain.LedgerEntry, error) {
	var rows []ledgerRow
	err := s.db.NewSelect().Model(&rows).
		Join("JOIN questions AS q ON q.id = le.question_id").
		Where("le.user_id = ?", userID).
		Where("q.trail_id = ?", trailID).
		OrderExpr("q.position, q.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trail entries: %w", err)
	}
	return toEntries(rows), nil
}

func (s *Store) TrailHistory(ctx context.Context, userID string, limit int) ([]domain.TrailHistoryItem, error) {
	var rows []historyRow
	err := s.db.NewRaw(`
		SELECT t.id AS trail_id, t.name AS trail_name, p.id AS place_id, p.name AS place_name,
		       MAX(le.updated_at) AS last_played_at
		FROM ledger_entries AS le
		JOIN questions AS q ON q.id = le.question_id
		JOIN trails AS t ON t.id = q.trail_id
		JOIN places AS p ON p.id = t.place_id
		WHERE le.user_id = ?
		GROUP BY t.id, t.name, p.id, p.name
		ORDER BY last_played_at DESC, t.id
		LIMIT ?`, userID, limit).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load trail history: %w", err)
	}
	out := make([]domain.TrailHistoryItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.TrailHistoryItem(r))
	}
	return out, nil
}

func (s *Store) Rewards(ctx context.Context) ([]domain.Reward, error) {
	var rows []rewardRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("r.cost, r.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}
	out := make([]domain.Reward, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) RedemptionsForUser(ctx context.Context, userID string) ([]domain.Redemption, error) {
	var rows []redemptionRow
	err := s.db.NewSelect().Model(&rows).
		Relation("Reward").
		Where("rd.user_id = ?", userID).
		OrderExpr("rd.created_at DESC, rd.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load redemptions: %w", err)
	}
	out := make([]domain.Redemption, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) FavoritePlaces(ctx context.Context, userID string) ([]domain.Place, error) {
	var rows []placeRow
	err := s.db.NewSelect().Model(&rows).
		Join("JOIN favorites AS f ON f.place_id = p.id").
		Where("f.user_id = ?", userID).
		OrderExpr("f.created_at, p.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return toPlaces(rows), nil
}

func (s *Store) PlacesByTypes(ctx context.Context, types []domain.PlaceType, excludeIDs []string, limit int) ([]domain.Place, error) {
	var rows []placeRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("p.created_at DESC, p.id")
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q = q.Where("p.type IN (?)", bun.In(names))
	}
	if len(excludeIDs) > 0 {
		q = q.Where("p.id NOT IN (?)", bun.In(excludeIDs))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load places: %w", err)
	}
	return toPlaces(rows), nil
}

func (s *Store) RandomPlaces(ctx context.Context, limit int) ([]domain.Place, error) {
	var rows []placeRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("random()").Limit(limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load random places: %w", err)
	}
	return toPlaces(rows), nil
}

func toEntries(rows []ledgerRow) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func toPlaces(rows []placeRow) []domain.Place {
	out := make([]domain.Place, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// userTx writes through the transaction opened by WithUser.
type userTx struct {
	tx   bun.Tx
	user domain.User
}

func (t *userTx) User() domain.User { return t.user }

func (t *userTx) Entry(ctx context.Context, questionID string) (domain.LedgerEntry, bool, error) {
	var row ledgerRow
	err := t.tx.NewSelect().Model(&row).
		Where("le.user_id = ?", t.user.ID).
		Where("le.question_id = ?", questionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, false, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, false, fmt.Errorf("load entry: %w", err)
	}
	return row.toDomain(), true, nil
}

// SaveEntry upserts on (user_id, question_id); the stored id wins on conflict.
func (t *userTx) SaveEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	row := ledgerRowFrom(*entry)
	_, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (user_id, question_id) DO UPDATE").
		Set("answer_id = EXCLUDED.answer_id").
		Set("is_correct = EXCLUDED.is_correct").
		Set("points_earned = EXCLUDED.points_earned").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	entry.ID = row.ID
	return nil
}

// AddPoints applies delta with a floor guard in the UPDATE itself.
func (t *userTx) AddPoints(ctx context.Context, delta int) (int, error) {
	var balance int
	err := t.tx.NewRaw(
		`UPDATE users SET points = points + ? WHERE id = ? AND points + ? >= 0 RETURNING points`,
		delta, t.user.ID, delta).Scan(ctx, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return t.user.Points, &domain.InsufficientBalanceError{Balance: t.user.Points, Cost: -delta}
	}
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	t.user.Points = balance
	return balance, nil
}

func (t *userTx) Reward(ctx context.Context, rewardID string) (domain.Reward, error) {
	var row rewardRow
	err := t.tx.NewSelect().Model(&row).Where("r.id = ?", rewardID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reward{}, domain.ErrRewardNotFound
	}
	if err != nil {
		return domain.Reward{}, fmt.Errorf("load reward: %w", err)
	}
	return row.toDomain(), nil
}

func (t *userTx) AddRedemption(ctx context.Context, r *domain.Redemption) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	row := redemptionRow{ID: r.ID, UserID: r.UserID, RewardID: r.RewardID, CreatedAt: r.CreatedAt}
	if _, err := t.tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

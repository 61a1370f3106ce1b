package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"trailpoints/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string `bun:"id,pk"`
	FirstName string `bun:"first_name"`
	LastName  string `bun:"last_name"`
	Email     string `bun:"email"`
	Points    int    `bun:"points"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Points: r.Points}
}

type placeRow struct {
	bun.BaseModel `bun:"table:places,alias:p"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name"`
	Description string    `bun:"description"`
	PostCode    string    `bun:"post_code"`
	City        string    `bun:"city"`
	Latitude    float64   `bun:"latitude"`
	Longitude   float64   `bun:"longitude"`
	Type        string    `bun:"type"`
	CreatedAt   time.Time `bun:"created_at"`
}

func (r placeRow) toDomain() domain.Place {
	return domain.Place{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		PostCode:    r.PostCode,
		City:        r.City,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Type:        domain.PlaceType(r.Type),
		CreatedAt:   r.CreatedAt,
	}
}

type favoriteRow struct {
	bun.BaseModel `bun:"table:favorites,alias:f"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id"`
	PlaceID   string    `bun:"place_id"`
	CreatedAt time.Time `bun:"created_at"`
}

type trailRow struct {
	bun.BaseModel `bun:"table:trails,alias:t"`

	ID              string `bun:"id,pk"`
	PlaceID         string `bun:"place_id"`
	Name            string `bun:"name"`
	Description     string `bun:"description"`
	DurationMinutes int    `bun:"duration_minutes"`
	Difficulty      string `bun:"difficulty"`
	Active          bool   `bun:"active"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID       string `bun:"id,pk"`
	TrailID  string `bun:"trail_id"`
	Text     string `bun:"text"`
	Image    string `bun:"image"`
	Point    int    `bun:"point"`
	Position int    `bun:"position"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id"`
	Text       string `bun:"text"`
	IsCorrect  bool   `bun:"is_correct"`
	Position   int    `bun:"position"`
}

type ledgerRow struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id"`
	QuestionID   string    `bun:"question_id"`
	AnswerID     string    `bun:"answer_id"`
	IsCorrect    bool      `bun:"is_correct"`
	PointsEarned int       `bun:"points_earned"`
	CreatedAt    time.Time `bun:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at"`
}

func (r ledgerRow) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:           r.ID,
		UserID:       r.UserID,
		QuestionID:   r.QuestionID,
		AnswerID:     r.AnswerID,
		IsCorrect:    r.IsCorrect,
		PointsEarned: r.PointsEarned,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func ledgerRowFrom(e domain.LedgerEntry) ledgerRow {
	return ledgerRow{
		ID:           e.ID,
		UserID:       e.UserID,
		QuestionID:   e.QuestionID,
		AnswerID:     e.AnswerID,
		IsCorrect:    e.IsCorrect,
		PointsEarned: e.PointsEarned,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

type rewardRow struct {
	bun.BaseModel `bun:"table:rewards,alias:r"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title"`
	Description string    `bun:"description"`
	Cost        int       `bun:"cost"`
	Image       string    `bun:"image"`
	CreatedAt   time.Time `bun:"created_at"`
}

func (r rewardRow) toDomain() domain.Reward {
	return domain.Reward{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Cost:        r.Cost,
		Image:       r.Image,
		CreatedAt:   r.CreatedAt,
	}
}

type redemptionRow struct {
	bun.BaseModel `bun:"table:redemptions,alias:rd"`

	ID        string     `bun:"id,pk"`
	UserID    string     `bun:"user_id"`
	RewardID  string     `bun:"reward_id"`
	CreatedAt time.Time  `bun:"created_at"`
	Reward    *rewardRow `bun:"rel:belongs-to,join:reward_id=id"`
}

func (r redemptionRow) toDomain() domain.Redemption {
	out := domain.Redemption{ID: r.ID, UserID: r.UserID, RewardID: r.RewardID, CreatedAt: r.CreatedAt}
	if r.Reward != nil {
		reward := r.Reward.toDomain()
		out.Reward = &reward
	}
	return out
}

type historyRow struct {
	TrailID      string    `bun:"trail_id"`
	TrailName    string    `bun:"trail_name"`
	PlaceID      string    `bun:"place_id"`
	PlaceName    string    `bun:"place_name"`
	LastPlayedAt time.Time `bun:"last_played_at"`
}

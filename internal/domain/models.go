package domain

import "time"

// User owns the spendable point balance.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Points    int    `json:"points"`
}

// PlaceType groups cultural places for recommendations.
type PlaceType string

const (
	PlaceTypeArt        PlaceType = "art"
	PlaceTypePatrimoine PlaceType = "patrimoine"
	PlaceTypeMythe      PlaceType = "mythe"
	PlaceTypeMusique    PlaceType = "musique"
)

// Place is a physical cultural place hosting trails.
type Place struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PostCode    string    `json:"postCode"`
	City        string    `json:"city"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	Type        PlaceType `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Favorite links a user to a place they bookmarked.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PlaceID   string    `json:"placeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Trail is a set of quiz questions tied to a place.
type Trail struct {
	ID              string `json:"id"`
	PlaceID         string `json:"placeId"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	Active          bool   `json:"active"`
}

// Answer is one candidate answer of a question.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Question models an MCQ question owned by a trail. Point is awarded once per user.
type Question struct {
	ID       string   `json:"id"`
	TrailID  string   `json:"trailId"`
	Text     string   `json:"text"`
	Image    string   `json:"image,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Point    int      `json:"point"`
	Answers  []Answer `json:"answers"`
}

// CorrectAnswer returns the first answer flagged correct, nil when none is.
func (q Question) CorrectAnswer() *Answer {
	for i := range q.Answers {
		if q.Answers[i].IsCorrect {
			a := q.Answers[i]
			return &a
		}
	}
	return nil
}

// LedgerEntry is the single record of a user's latest submission for one question.
// PointsEarned is what was actually credited, not the nominal question value.
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	QuestionID   string    `json:"questionId"`
	AnswerID     string    `json:"answerId"`
	IsCorrect    bool      `json:"isCorrect"`
	PointsEarned int       `json:"pointsEarned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AnswerResult summarizes the outcome of a submission for a single user.
type AnswerResult struct {
	QuestionID    string  `json:"questionId"`
	IsCorrect     bool    `json:"isCorrect"`
	PointsEarned  int     `json:"pointsEarned"`
	CorrectAnswer *Answer `json:"correctAnswer,omitempty"`
	Message       string  `json:"message"`
	Balance       int     `json:"balance"`
}

// TrailProgress is derived on demand from the catalog and the ledger.
type TrailProgress struct {
	TrailID           string `json:"trailId"`
	TotalQuestions    int    `json:"totalQuestions"`
	AnsweredQuestions int    `json:"answeredQuestions"`
	CorrectAnswers    int    `json:"correctAnswers"`
	TotalPoints       int    `json:"totalPoints"`
	PointsEarned      int    `json:"pointsEarned"`
	MissingPoints     int    `json:"missingPoints"`
	Completed         bool   `json:"completed"`
}

// TrailHistoryItem lists a trail the user played, most recent first.
type TrailHistoryItem struct {
	TrailID      string    `json:"trailId"`
	TrailName    string    `json:"trailName"`
	PlaceID      string    `json:"placeId"`
	PlaceName    string    `json:"placeName"`
	LastPlayedAt time.Time `json:"lastPlayedAt"`
}

// Reward is a purchasable catalog item.
type Reward struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Cost        int       `json:"cost"`
	Image       string    `json:"image,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Redemption records one purchase. Rows are append-only.
type Redemption struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	RewardID  string    `json:"rewardId"`
	CreatedAt time.Time `json:"createdAt"`
	Reward    *Reward   `json:"reward,omitempty"`
}

// BalanceEvent is pushed to live subscribers after a committed balance change.
type BalanceEvent struct {
	UserID  string    `json:"userId"`
	Balance int       `json:"balance"`
	Delta   int       `json:"delta"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

const (
	ReasonQuizCredit     = "quiz_credit"
	ReasonRewardPurchase = "reward_purchase"
)

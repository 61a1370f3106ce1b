package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trailpoints/internal/domain"
)

// Fixture is the YAML document imported by the seed command.
type Fixture struct {
	Users     []User     `yaml:"users"`
	Places    []Place    `yaml:"places"`
	Favorites []Favorite `yaml:"favorites"`
	Trails    []Trail    `yaml:"trails"`
	Rewards   []Reward   `yaml:"rewards"`
}

type User struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
	Points    int    `yaml:"points"`
}

type Place struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	PostCode    string  `yaml:"postCode"`
	City        string  `yaml:"city"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Type        string  `yaml:"type"`
}

type Favorite struct {
	UserID  string `yaml:"userId"`
	PlaceID string `yaml:"placeId"`
}

type Trail struct {
	ID              string     `yaml:"id"`
	PlaceID         string     `yaml:"placeId"`
	Name            string     `yaml:"name"`
	Description     string     `yaml:"description"`
	DurationMinutes int        `yaml:"durationMinutes"`
	Difficulty      string     `yaml:"difficulty"`
	Inactive        bool       `yaml:"inactive"`
	Questions       []Question `yaml:"questions"`
}

type Question struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"text"`
	Image   string   `yaml:"image"`
	Point   int      `yaml:"point"`
	Answers []Answer `yaml:"answers"`
}

type Answer struct {
	ID      string `yaml:"id"`
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

type Reward struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Cost        int    `yaml:"cost"`
	Image       string `yaml:"image"`
}

// Dataset is a validated fixture in domain form, ready for a store to import.
type Dataset struct {
	Users     []domain.User
	Places    []domain.Place
	Favorites []domain.Favorite
	Trails    []domain.Trail
	Questions []domain.Question
	Rewards   []domain.Reward
}

//go:embed sample.yaml
var sample []byte

// Sample returns the built-in demo dataset served when no fixture is configured.
func Sample(now time.Time) (Dataset, error) {
	return Parse(bytes.NewReader(sample), now)
}

// LoadFile reads and validates a YAML fixture.
func LoadFile(path string, now time.Time) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	return Parse(f, now)
}

func Parse(r io.Reader, now time.Time) (Dataset, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return Dataset{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx.Dataset(now)
}

// Dataset converts the fixture, rejecting dangling references and questions
// without exactly one correct answer. Places get decreasing creation times in
// document order so the first place listed is the newest.
func (fx Fixture) Dataset(now time.Time) (Dataset, error) {
	var ds Dataset
	users := make(map[string]bool)
	places := make(map[string]bool)

	for _, u := range fx.Users {
		if u.ID == "" || u.Points < 0 {
			return Dataset{}, fmt.Errorf("user %q: id required and points must be >= 0", u.ID)
		}
		users[u.ID] = true
		ds.Users = append(ds.Users, domain.User{
			ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Points: u.Points,
		})
	}

	for i, p := range fx.Places {
		if p.ID == "" {
			return Dataset{}, fmt.Errorf("place %d: id required", i)
		}
		places[p.ID] = true
		ds.Places = append(ds.Places, domain.Place{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PostCode:    p.PostCode,
			City:        p.City,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Type:        domain.PlaceType(p.Type),
			CreatedAt:   now.Add(-time.Duration(i) * time.Second),
		})
	}

	for i, f := range fx.Favorites {
		if !users[f.UserID] || !places[f.PlaceID] {
			return Dataset{}, fmt.Errorf("favorite %d: unknown user %q or place %q", i, f.UserID, f.PlaceID)
		}
		ds.Favorites = append(ds.Favorites, domain.Favorite{
			ID:        fmt.Sprintf("fav-%s-%s", f.UserID, f.PlaceID),
			UserID:    f.UserID,
			PlaceID:   f.PlaceID,
			CreatedAt: now,
		})
	}

	for _, t := range fx.Trails {
		if t.ID == "" || !places[t.PlaceID] {
			return Dataset{}, fmt.Errorf("trail %q: id and a known place are required", t.ID)
		}
		ds.Trails = append(ds.Trails, domain.Trail{
			ID:              t.ID,
			PlaceID:         t.PlaceID,
			Name:            t.Name,
			Description:     t.Description,
			DurationMinutes: t.DurationMinutes,
			Difficulty:      t.Difficulty,
			Active:          !t.Inactive,
		})
		for _, q := range t.Questions {
			question := domain.Question{
				ID:      q.ID,
				TrailID: t.ID,
				Text:    q.Text,
				Image:   q.Image,
				Point:   q.Point,
			}
			for _, a := range q.Answers {
				question.Answers = append(question.Answers, domain.Answer{
					ID: a.ID, QuestionID: q.ID, Text: a.Text, IsCorrect: a.Correct,
				})
			}
			if err := domain.ValidateQuestion(question); err != nil {
				return Dataset{}, fmt.Errorf("question %q: %w", q.ID, err)
			}
			ds.Questions = append(ds.Questions, question)
		}
	}

	for _, r := range fx.Rewards {
		if r.ID == "" || r.Cost <= 0 {
			return Dataset{}, fmt.Errorf("reward %q: id required and cost must be > 0", r.ID)
		}
		ds.Rewards = append(ds.Rewards, domain.Reward{
			ID: r.ID, Title: r.Title, Description: r.Description, Cost: r.Cost, Image: r.Image, CreatedAt: now,
		})
	}
	return ds, nil
}

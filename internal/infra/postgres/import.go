package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"trailpoints/internal/seed"
)

// Import upserts a seed dataset in one transaction. Existing users keep their
// balance; catalog rows are overwritten.
func (s *Store) Import(ctx context.Context, ds seed.Dataset) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(ds.Users) > 0 {
			rows := make([]userRow, 0, len(ds.Users))
			for _, u := range ds.Users {
				rows = append(rows, userRow{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Points: u.Points})
			}
			if err := upsert(ctx, tx, &rows, "id", "first_name", "last_name", "email"); err != nil {
				return fmt.Errorf("import users: %w", err)
			}
		}

		if len(ds.Places) > 0 {
			rows := make([]placeRow, 0, len(ds.Places))
			for _, p := range ds.Places {
				rows = append(rows, placeRow{
					ID:          p.ID,
					Name:        p.Name,
					Description: p.Description,
					PostCode:    p.PostCode,
					City:        p.City,
					Latitude:    p.Latitude,
					Longitude:   p.Longitude,
					Type:        string(p.Type),
					CreatedAt:   p.CreatedAt,
				})
			}
			if err := upsert(ctx, tx, &rows, "id", "name", "description", "post_code", "city", "latitude", "longitude", "type"); err != nil {
				return fmt.Errorf("import places: %w", err)
			}
		}

		if len(ds.Favorites) > 0 {
			rows := make([]favoriteRow, 0, len(ds.Favorites))
			for _, f := range ds.Favorites {
				rows = append(rows, favoriteRow{ID: f.ID, UserID: f.UserID, PlaceID: f.PlaceID, CreatedAt: f.CreatedAt})
			}
			if _, err := tx.NewInsert().Model(&rows).On("CONFLICT (user_id, place_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("import favorites: %w", err)
			}
		}

		if len(ds.Trails) > 0 {
			rows := make([]trailRow, 0, len(ds.Trails))
			for _, t := range ds.Trails {
				rows = append(rows, trailRow{
					ID:              t.ID,
					PlaceID:         t.PlaceID,
					Name:            t.Name,
					Description:     t.Description,
					DurationMinutes: t.DurationMinutes,
					Difficulty:      t.Difficulty,
					Active:          t.Active,
				})
			}
			if err := upsert(ctx, tx, &rows, "id", "place_id", "name", "description", "duration_minutes", "difficulty", "active"); err != nil {
				return fmt.Errorf("import trails: %w", err)
			}
		}

		if len(ds.Questions) > 0 {
			questions := make([]questionRow, 0, len(ds.Questions))
			var answers []answerRow
			for i, q := range ds.Questions {
				questions = append(questions, questionRow{
					ID: q.ID, TrailID: q.TrailID, Text: q.Text, Image: q.Image, Point: q.Point, Position: i,
				})
				for j, a := range q.Answers {
					answers = append(answers, answerRow{
						ID: a.ID, QuestionID: q.ID, Text: a.Text, IsCorrect: a.IsCorrect, Position: j,
					})
				}
			}
			if err := upsert(ctx, tx, &questions, "id", "trail_id", "text", "image", "point", "position"); err != nil {
				return fmt.Errorf("import questions: %w", err)
			}
			if len(answers) > 0 {
				if err := upsert(ctx, tx, &answers, "id", "question_id", "text", "is_correct", "position"); err != nil {
					return fmt.Errorf("import answers: %w", err)
				}
			}
		}

		if len(ds.Rewards) > 0 {
			rows := make([]rewardRow, 0, len(ds.Rewards))
			for _, r := range ds.Rewards {
				rows = append(rows, rewardRow{ID: r.ID, Title: r.Title, Description: r.Description, Cost: r.Cost, Image: r.Image, CreatedAt: r.CreatedAt})
			}
			if err := upsert(ctx, tx, &rows, "id", "title", "description", "cost", "image"); err != nil {
				return fmt.Errorf("import rewards: %w", err)
			}
		}
		return nil
	})
}

// upsert inserts rows and overwrites cols on a primary key conflict.
func upsert(ctx context.Context, tx bun.Tx, rows any, pk string, cols ...string) error {
	q := tx.NewInsert().Model(rows).On("CONFLICT (" + pk + ") DO UPDATE")
	for _, c := range cols {
		q = q.Set(c + " = EXCLUDED." + c)
	}
	_, err := q.Exec(ctx)
	return err
}

package app_test

import (
	"context"
	"testing"
	"time"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
	"trailpoints/internal/seed"
)

func TestRecommendWithoutFavoritesIsRandom(t *testing.T) {
	store := newTestStore(t)
	svc := app.NewRecommendationService(store)

	places, err := svc.Recommend(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(places) != 3 {
		t.Fatalf("expected 3 random places, got %d", len(places))
	}
}

func TestRecommendPrefersFavoriteTypes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	favorite(t, store, "u1", "p1")
	svc := app.NewRecommendationService(store)

	places, err := svc.Recommend(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(places) != 1 || places[0].ID != "p2" {
		t.Fatalf("expected the other art place, got %+v", places)
	}
}

func TestRecommendPadsWithOtherPlaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	favorite(t, store, "u1", "p1")
	svc := app.NewRecommendationService(store)

	places, err := svc.Recommend(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	ids := make([]string, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}
	want := []string{"p2", "p3", "p4"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestRecommendRanksTypesByFrequency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_ = store.Import(ctx, seed.Dataset{Places: []domain.Place{
		{ID: "p5", Name: "Philharmonie", Type: domain.PlaceTypeMusique, CreatedAt: now.Add(time.Hour)},
		{ID: "p6", Name: "Conservatoire", Type: domain.PlaceTypeMusique, CreatedAt: now.Add(-5 * time.Hour)},
	}})
	favorite(t, store, "u1", "p1")
	favorite(t, store, "u1", "p3")
	favorite(t, store, "u1", "p6")
	svc := app.NewRecommendationService(store)

	places, err := svc.Recommend(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(places) != 2 || places[0].ID != "p5" || places[1].ID != "p2" {
		t.Fatalf("expected newest places of favorite types, got %+v", places)
	}
}

func favorite(t *testing.T, store interface {
	Import(context.Context, seed.Dataset) error
}, userID, placeID string) {
	t.Helper()
	err := store.Import(context.Background(), seed.Dataset{Favorites: []domain.Favorite{
		{ID: userID + "-" + placeID, UserID: userID, PlaceID: placeID},
	}})
	if err != nil {
		t.Fatalf("favorite: %v", err)
	}
}

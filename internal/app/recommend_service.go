package app

import (
	"context"
	"sort"

	"trailpoints/internal/domain"
)

const preferredTypes = 3

// PlaceStore reads places and favorites. PlacesByTypes with no types matches
// every type; results are newest first.
type PlaceStore interface {
	FavoritePlaces(ctx context.Context, userID string) ([]domain.Place, error)
	PlacesByTypes(ctx context.Context, types []domain.PlaceType, excludeIDs []string, limit int) ([]domain.Place, error)
	RandomPlaces(ctx context.Context, limit int) ([]domain.Place, error)
}

// RecommendationService suggests places from the user's favorite types.
type RecommendationService struct {
	places PlaceStore
}

func NewRecommendationService(places PlaceStore) *RecommendationService {
	return &RecommendationService{places: places}
}

// Recommend returns up to limit places the user has not favorited.
func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) ([]domain.Place, error) {
	if limit <= 0 {
		limit = 5
	}
	favorites, err := s.places.FavoritePlaces(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return s.places.RandomPlaces(ctx, limit)
	}

	exclude := make([]string, 0, len(favorites))
	for _, p := range favorites {
		exclude = append(exclude, p.ID)
	}
	picked, err := s.places.PlacesByTypes(ctx, topTypes(favorites, preferredTypes), exclude, limit)
	if err != nil {
		return nil, err
	}
	if len(picked) >= limit {
		return picked[:limit], nil
	}

	for _, p := range picked {
		exclude = append(exclude, p.ID)
	}
	more, err := s.places.PlacesByTypes(ctx, nil, exclude, limit-len(picked))
	if err != nil {
		return nil, err
	}
	return append(picked, more...), nil
}

// topTypes ranks place types by how often they were favorited. Ties keep the
// order in which the type was first seen.
func topTypes(favorites []domain.Place, n int) []domain.PlaceType {
	counts := make(map[domain.PlaceType]int)
	var order []domain.PlaceType
	for _, p := range favorites {
		if _, ok := counts[p.Type]; !ok {
			order = append(order, p.Type)
		}
		counts[p.Type]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

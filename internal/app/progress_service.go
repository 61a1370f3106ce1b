package app

import (
	"context"

	"go.uber.org/zap"

	"trailpoints/internal/domain"
)

// ProgressCache stores derived trail progress. Get returns the version the
// value was looked up under; Set must store under that same version so a
// write that raced the computation cannot be masked.
type ProgressCache interface {
	ProgressInvalidator
	Get(ctx context.Context, userID, trailID string) (domain.TrailProgress, string, bool, error)
	Set(ctx context.Context, userID, trailID, version string, p domain.TrailProgress) error
}

// ProgressService derives trail completion from the catalog and the ledger.
type ProgressService struct {
	catalog Catalog
	store   Store
	cache   ProgressCache
	log     *zap.Logger
}

func NewProgressService(catalog Catalog, store Store, cache ProgressCache, opts ...Option) *ProgressService {
	o := buildOptions(opts)
	return &ProgressService{catalog: catalog, store: store, cache: cache, log: o.log}
}

// TrailProgress never fails for missing data: an unknown trail or a user with
// no answers yields zero values.
func (s *ProgressService) TrailProgress(ctx context.Context, userID, trailID string) (domain.TrailProgress, error) {
	version := ""
	if s.cache != nil {
		p, v, ok, err := s.cache.Get(ctx, userID, trailID)
		switch {
		case err != nil:
			s.log.Warn("progress cache read failed", zap.String("trail_id", trailID), zap.Error(err))
		case ok:
			return p, nil
		default:
			version = v
		}
	}

	questions, err := s.catalog.TrailQuestions(ctx, trailID)
	if err != nil {
		return domain.TrailProgress{}, err
	}
	entries, err := s.store.EntriesForTrail(ctx, userID, trailID)
	if err != nil {
		return domain.TrailProgress{}, err
	}
	progress := aggregateProgress(trailID, questions, entries)

	if s.cache != nil && version != "" {
		if err := s.cache.Set(ctx, userID, trailID, version, progress); err != nil {
			s.log.Warn("progress cache write failed", zap.String("trail_id", trailID), zap.Error(err))
		}
	}
	return progress, nil
}

func aggregateProgress(trailID string, questions []domain.Question, entries []domain.LedgerEntry) domain.TrailProgress {
	p := domain.TrailProgress{
		TrailID:           trailID,
		TotalQuestions:    len(questions),
		AnsweredQuestions: len(entries),
	}
	for _, q := range questions {
		p.TotalPoints += q.Point
	}
	for _, e := range entries {
		p.PointsEarned += e.PointsEarned
		if e.IsCorrect {
			p.CorrectAnswers++
		}
	}
	p.MissingPoints = max(0, p.TotalPoints-p.PointsEarned)
	p.Completed = p.TotalQuestions > 0 && p.AnsweredQuestions >= p.TotalQuestions
	return p
}

// TrailQuestions returns the trail's questions with resolved image URLs.
func (s *ProgressService) TrailQuestions(ctx context.Context, trailID string, assets AssetResolver) ([]domain.Question, error) {
	questions, err := s.catalog.TrailQuestions(ctx, trailID)
	if err != nil {
		return nil, err
	}
	if assets == nil {
		assets = noAssets{}
	}
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.ImageURL = resolve(assets, q.Image)
		out[i] = q
	}
	return out, nil
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trailpoints/internal/config"
	"trailpoints/internal/infra/postgres"
	infraredis "trailpoints/internal/infra/redis"
	"trailpoints/internal/seed"
)

// NewSeedCmd imports a YAML fixture into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import users, places, trails and rewards from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runSeed(cmd.Context(), cfg, log, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "fixture to import (built-in demo data when empty)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, log *zap.Logger, file string) error {
	ds, err := loadDataset(file)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()
	if err := postgres.NewStore(db).Import(ctx, ds); err != nil {
		return err
	}
	log.Info("fixture imported",
		zap.String("file", file),
		zap.Int("users", len(ds.Users)),
		zap.Int("trails", len(ds.Trails)),
		zap.Int("questions", len(ds.Questions)),
		zap.Int("rewards", len(ds.Rewards)))

	if cfg.Redis.Addr == "" {
		return nil
	}
	// Drop cached copies of the trails that were just rewritten.
	client := newRedisClient(cfg)
	defer client.Close()
	cache := infraredis.NewCatalogCache(client, nil, 0)
	byTrail := make(map[string][]string)
	for _, q := range ds.Questions {
		byTrail[q.TrailID] = append(byTrail[q.TrailID], q.ID)
	}
	for _, t := range ds.Trails {
		if err := cache.Evict(ctx, t.ID, byTrail[t.ID]...); err != nil {
			log.Warn("catalog cache eviction failed", zap.String("trail_id", t.ID), zap.Error(err))
		}
	}
	return nil
}

func loadDataset(file string) (seed.Dataset, error) {
	if file == "" {
		return seed.Sample(time.Now())
	}
	ds, err := seed.LoadFile(file, time.Now())
	if err != nil {
		return seed.Dataset{}, fmt.Errorf("load fixture %s: %w", file, err)
	}
	return ds, nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"trailpoints/internal/domain"
)

// RewardStore reads the reward shop.
type RewardStore interface {
	Rewards(ctx context.Context) ([]domain.Reward, error)
	RedemptionsForUser(ctx context.Context, userID string) ([]domain.Redemption, error)
}

// RewardService lets users spend quiz points on rewards.
type RewardService struct {
	store    Store
	rewards  RewardStore
	hub      *Hub
	observer Observer
	assets   AssetResolver
	log      *zap.Logger
	now      func() time.Time
}

func NewRewardService(store Store, rewards RewardStore, opts ...Option) *RewardService {
	o := buildOptions(opts)
	return &RewardService{
		store:    store,
		rewards:  rewards,
		hub:      o.hub,
		observer: o.observer,
		assets:   o.assets,
		log:      o.log,
		now:      o.now,
	}
}

// ListRewards returns the shop catalog with resolved image URLs.
func (s *RewardService) ListRewards(ctx context.Context) ([]domain.Reward, error) {
	rewards, err := s.rewards.Rewards(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rewards {
		rewards[i].ImageURL = resolve(s.assets, rewards[i].Image)
	}
	return rewards, nil
}

// Purchase debits the reward cost and records the redemption in one unit of
// work. The balance is checked against the locked user row.
func (s *RewardService) Purchase(ctx context.Context, userID, rewardID string) (domain.Redemption, error) {
	var (
		redemption domain.Redemption
		balance    int
		cost       int
	)
	err := s.store.WithUser(ctx, userID, func(tx UserTx) error {
		reward, err := tx.Reward(ctx, rewardID)
		if err != nil {
			return err
		}
		cost = reward.Cost
		current := tx.User().Points
		if current < reward.Cost {
			return &domain.InsufficientBalanceError{Balance: current, Cost: reward.Cost}
		}
		balance, err = tx.AddPoints(ctx, -reward.Cost)
		if err != nil {
			return err
		}
		redemption = domain.Redemption{
			UserID:    userID,
			RewardID:  reward.ID,
			CreatedAt: s.now(),
		}
		if err := tx.AddRedemption(ctx, &redemption); err != nil {
			return err
		}
		reward.ImageURL = resolve(s.assets, reward.Image)
		redemption.Reward = &reward
		return nil
	})
	if err != nil {
		s.observer.RewardPurchased(purchaseOutcome(err), cost)
		s.log.Debug("purchase rejected",
			zap.String("user_id", userID),
			zap.String("reward_id", rewardID),
			zap.Error(err))
		return domain.Redemption{}, err
	}

	s.observer.RewardPurchased("ok", cost)
	s.log.Info("reward purchased",
		zap.String("user_id", userID),
		zap.String("reward_id", rewardID),
		zap.Int("cost", cost),
		zap.Int("balance", balance))
	if s.hub != nil {
		s.hub.Publish(domain.BalanceEvent{
			UserID:  userID,
			Balance: balance,
			Delta:   -cost,
			Reason:  domain.ReasonRewardPurchase,
			At:      s.now(),
		})
	}
	return redemption, nil
}

// ListUserRedemptions returns the user's purchases, newest first.
func (s *RewardService) ListUserRedemptions(ctx context.Context, userID string) ([]domain.Redemption, error) {
	redemptions, err := s.rewards.RedemptionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range redemptions {
		if r := redemptions[i].Reward; r != nil {
			r.ImageURL = resolve(s.assets, r.Image)
		}
	}
	return redemptions, nil
}

func purchaseOutcome(err error) string {
	if errors.Is(err, domain.ErrInsufficientBalance) {
		return "insufficient_balance"
	}
	return string(domain.Kind(err))
}

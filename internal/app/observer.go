package app

// Observer receives business outcomes for metrics.
type Observer interface {
	AnswerSubmitted(outcome string, pointsCredited int)
	RewardPurchased(outcome string, cost int)
}

type nopObserver struct{}

func (nopObserver) AnswerSubmitted(string, int) {}
func (nopObserver) RewardPurchased(string, int) {}

// AssetResolver turns an object-store key into a public URL.
type AssetResolver interface {
	URL(key string) string
}

type noAssets struct{}

func (noAssets) URL(string) string { return "" }

func resolve(assets AssetResolver, key string) string {
	if key == "" {
		return ""
	}
	return assets.URL(key)
}

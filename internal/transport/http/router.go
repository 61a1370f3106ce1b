package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"trailpoints/internal/app"
	"trailpoints/internal/metrics"
)

type RouterConfig struct {
	Ledger    *app.LedgerService
	Progress  *app.ProgressService
	Rewards   *app.RewardService
	Recommend *app.RecommendationService
	Hub       *app.Hub
	Assets    app.AssetResolver
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := NewHandler(cfg)
	ws := NewWSHandler(cfg.Ledger, cfg.Rewards, cfg.Hub, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rewards", h.ListRewards)
		r.Get("/trails/{trailID}/questions", h.TrailQuestions)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/questions/{questionID}/submit", h.SubmitAnswer)
			r.Get("/trails/{trailID}/progress", h.TrailProgress)
			r.Post("/rewards/{rewardID}/purchase", h.PurchaseReward)
			r.Get("/places/recommendations", h.Recommend)

			r.Route("/me", func(r chi.Router) {
				r.Get("/answers", h.ListUserAnswers)
				r.Get("/trails", h.TrailHistory)
				r.Get("/balance", h.Balance)
				r.Get("/rewards", h.ListUserRedemptions)
			})
		})
	})
	return r
}

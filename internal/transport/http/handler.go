package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

// Handler serves the REST API.
type Handler struct {
	ledger    *app.LedgerService
	progress  *app.ProgressService
	rewards   *app.RewardService
	recommend *app.RecommendationService
	assets    app.AssetResolver
	log       *zap.Logger
}

func NewHandler(cfg RouterConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		ledger:    cfg.Ledger,
		progress:  cfg.Progress,
		rewards:   cfg.Rewards,
		recommend: cfg.Recommend,
		assets:    cfg.Assets,
		log:       log,
	}
}

type submitRequest struct {
	AnswerID string `json:"answerId"`
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.AnswerID == "" {
		badRequest(w, "answerId is required")
		return
	}
	res, err := h.ledger.SubmitAnswer(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "questionID"), req.AnswerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) TrailProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.TrailProgress(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "trailID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type answerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID       string       `json:"id"`
	TrailID  string       `json:"trailId"`
	Text     string       `json:"text"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Point    int          `json:"point"`
	Answers  []answerView `json:"answers"`
}

// TrailQuestions lists a trail's questions without revealing correct answers.
func (h *Handler) TrailQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.progress.TrailQuestions(r.Context(), chi.URLParam(r, "trailID"), h.assets)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]questionView, 0, len(questions))
	for _, q := range questions {
		v := questionView{ID: q.ID, TrailID: q.TrailID, Text: q.Text, ImageURL: q.ImageURL, Point: q.Point, Answers: make([]answerView, 0, len(q.Answers))}
		for _, a := range q.Answers {
			v.Answers = append(v.Answers, answerView{ID: a.ID, Text: a.Text})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListUserAnswers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ListUserAnswers(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) TrailHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	items, err := h.ledger.TrailHistory(r.Context(), userFromContext(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.TrailHistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.Balance(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}

func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.ListRewards(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rewards == nil {
		rewards = []domain.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *Handler) PurchaseReward(w http.ResponseWriter, r *http.Request) {
	redemption, err := h.rewards.Purchase(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "rewardID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *Handler) ListUserRedemptions(w http.ResponseWriter, r *http.Request) {
	redemptions, err := h.rewards.ListUserRedemptions(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if redemptions == nil {
		redemptions = []domain.Redemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	places, err := h.recommend.Recommend(r.Context(), userFromContext(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if places == nil {
		places = []domain.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}

// queryLimit reads ?limit=; zero lets the service apply its default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

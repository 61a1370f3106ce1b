package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"trailpoints/internal/domain"
)

type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Balance    *int   `json:"balance,omitempty"`
	Cost       *int   `json:"cost,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse classifies err into a status code and client payload.
// Internal failures never leak their message.
func errorResponse(err error) (int, errorBody) {
	body := errorBody{Error: errorCode(err), Message: err.Error()}

	var insufficient *domain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		body.Balance = &insufficient.Balance
		body.Cost = &insufficient.Cost
	}
	var completed *domain.AlreadyCompletedError
	if errors.As(err, &completed) {
		body.QuestionID = completed.QuestionID
	}

	switch domain.Kind(err) {
	case domain.KindNotFound:
		return http.StatusNotFound, body
	case domain.KindConflict:
		return http.StatusConflict, body
	case domain.KindInvalid:
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return "question_not_found"
	case errors.Is(err, domain.ErrAnswerNotFound):
		return "answer_not_found"
	case errors.Is(err, domain.ErrTrailNotFound):
		return "trail_not_found"
	case errors.Is(err, domain.ErrRewardNotFound):
		return "reward_not_found"
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrMismatchedAnswer):
		return "mismatched_answer"
	case errors.Is(err, domain.ErrInvalidQuestion):
		return "invalid_question"
	default:
		return string(domain.Kind(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: message})
}

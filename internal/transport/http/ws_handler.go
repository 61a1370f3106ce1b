package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trailpoints/internal/app"
)

// WSHandler lets a user submit answers and buy rewards over one socket and
// pushes every committed balance change of that user back to it.
type WSHandler struct {
	ledger   *app.LedgerService
	rewards  *app.RewardService
	hub      *app.Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(ledger *app.LedgerService, rewards *app.RewardService, hub *app.Hub, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if hub == nil {
		hub = app.NewHub()
	}
	return &WSHandler{
		ledger:  ledger,
		rewards: rewards,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
}

type purchasePayload struct {
	RewardID string `json:"rewardId"`
}

type connectedPayload struct {
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and serves answer and purchase commands.
// The user comes from the X-User-ID header or the userId query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing userId"})
		return
	}
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(userID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "balance", Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "connected", Payload: connectedPayload{UserID: userID, Balance: balance}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.dispatch(r, userID, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, userID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" || payload.AnswerID == "" {
			return wsError(errorBody{Error: "bad_request", Message: "invalid answer payload"})
		}
		res, err := h.ledger.SubmitAnswer(r.Context(), userID, payload.QuestionID, payload.AnswerID)
		if err != nil {
			return h.wsFailure(userID, err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: res}
	case "purchase":
		var payload purchasePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.RewardID == "" {
			return wsError(errorBody{Error: "bad_request", Message: "invalid purchase payload"})
		}
		redemption, err := h.rewards.Purchase(r.Context(), userID, payload.RewardID)
		if err != nil {
			return h.wsFailure(userID, err)
		}
		return outboundMessage[any]{Type: "purchaseResult", Payload: redemption}
	default:
		return wsError(errorBody{Error: "bad_request", Message: "unsupported message type"})
	}
}

func (h *WSHandler) wsFailure(userID string, err error) outboundMessage[any] {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error("ws command failed", zap.String("user_id", userID), zap.Error(err))
	}
	return wsError(body)
}

func wsError(body errorBody) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: body}
}

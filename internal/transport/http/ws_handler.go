package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler drives an assessment run over a single websocket: the mobile
// client opens one connection, sends typed commands, and receives the next
// step or result after each. Everything still round-trips through the
// durable stores; the socket holds no session state of its own.
type WSHandler struct {
	state    *app.StateService
	baseline *app.BaselineService
	review   *app.ReviewService
	upgrader websocket.Upgrader
}

func NewWSHandler(state *app.StateService, baseline *app.BaselineService, review *app.ReviewService) *WSHandler {
	return &WSHandler{
		state:    state,
		baseline: baseline,
		review:   review,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type baselineAnswerPayload struct {
	StepType    string `json:"stepType"`
	StepID      string `json:"stepId"`
	Ack         *bool  `json:"ack,omitempty"`
	OptionIndex *int   `json:"optionIndex,omitempty"`
}

type reviewAnswerPayload struct {
	TestNo int `json:"testNo"`
	Index  int `json:"index"`
	Value  int `json:"value"`
}

type reviewStartPayload struct {
	Force bool `json:"force"`
}

type reviewChoosePayload struct {
	Path string `json:"path"`
}

type reviewCompletePayload struct {
	TestNo int `json:"testNo"`
}

// ServeWS upgrades the request and serves assessment commands until the
// client hangs up.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	h.pushState(r.Context(), send, userID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), send, userID, inbound)
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, send chan<- outboundMessage[any], userID string, inbound inboundMessage) {
	switch inbound.Type {
	case "state":
		h.pushState(ctx, send, userID)

	case "startBaseline":
		if _, err := h.baseline.Start(ctx, userID, app.KindBaseline); err != nil {
			sendError(send, err)
			return
		}
		h.pushBaseline(ctx, send, userID)

	case "answerBaseline":
		var payload baselineAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Kind: "bad_request"}}
			return
		}
		answer := domain.Answer{Ack: payload.Ack, OptionIndex: payload.OptionIndex}
		if _, err := h.baseline.Answer(ctx, userID, app.KindBaseline, domain.StepKind(payload.StepType), payload.StepID, answer); err != nil {
			sendError(send, err)
			return
		}
		h.pushBaseline(ctx, send, userID)

	case "submitBaseline":
		session, result, err := h.baseline.Submit(ctx, userID, app.KindBaseline)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "baselineResult", Payload: map[string]any{"session": session, "result": result}}

	case "chooseReviewPath":
		var payload reviewChoosePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid choose payload", Kind: "bad_request"}}
			return
		}
		session, err := h.review.Choose(ctx, userID, domain.ReviewPath(payload.Path))
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: app.NewReviewSessionView(session)}

	case "startReview":
		var payload reviewStartPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload", Kind: "bad_request"}}
				return
			}
		}
		session, err := h.review.Start(ctx, userID, payload.Force)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: app.NewReviewSessionView(session)}

	case "answerReview":
		var payload reviewAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Kind: "bad_request"}}
			return
		}
		session, err := h.review.Answer(ctx, userID, payload.TestNo, payload.Index, payload.Value)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: app.NewReviewSessionView(session)}

	case "completeReviewTest":
		var payload reviewCompletePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid complete payload", Kind: "bad_request"}}
			return
		}
		session, err := h.review.CompleteTest(ctx, userID, payload.TestNo)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: app.NewReviewSessionView(session)}

	case "finishReview":
		session, err := h.review.Finish(ctx, userID)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: app.NewReviewSessionView(session)}

	case "getReviewResult":
		view, err := h.review.Result(ctx, userID)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "reviewResult", Payload: view}

	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: "bad_request"}}
	}
}

func (h *WSHandler) pushState(ctx context.Context, send chan<- outboundMessage[any], userID string) {
	state, err := h.state.GetState(ctx, userID)
	if err != nil {
		sendError(send, err)
		return
	}
	send <- outboundMessage[any]{Type: "state", Payload: state}
}

func (h *WSHandler) pushBaseline(ctx context.Context, send chan<- outboundMessage[any], userID string) {
	state, err := h.baseline.State(ctx, userID, app.KindBaseline)
	if err != nil {
		sendError(send, err)
		return
	}
	send <- outboundMessage[any]{Type: "baseline", Payload: state}
}

func sendError(send chan<- outboundMessage[any], err error) {
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: kindFor(err)}}
}

package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
)

// Handler exposes the core operations as JSON endpoints. Timestamps
// serialize as ISO-8601 via time.Time's default marshalling.
type Handler struct {
	state    *app.StateService
	baseline *app.BaselineService
	review   *app.ReviewService
}

func NewHandler(state *app.StateService, baseline *app.BaselineService, review *app.ReviewService) *Handler {
	return &Handler{state: state, baseline: baseline, review: review}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/state", h.handleState)
	mux.HandleFunc("/api/v1/baseline/start", h.handleBaselineStart)
	mux.HandleFunc("/api/v1/baseline/answer", h.handleBaselineAnswer)
	mux.HandleFunc("/api/v1/baseline/submit", h.handleBaselineSubmit)
	mux.HandleFunc("/api/v1/baseline/state", h.handleBaselineState)
	mux.HandleFunc("/api/v1/review/choose", h.handleReviewChoose)
	mux.HandleFunc("/api/v1/review/start", h.handleReviewStart)
	mux.HandleFunc("/api/v1/review/answer", h.handleReviewAnswer)
	mux.HandleFunc("/api/v1/review/complete-test", h.handleReviewCompleteTest)
	mux.HandleFunc("/api/v1/review/finish", h.handleReviewFinish)
	mux.HandleFunc("/api/v1/review/result", h.handleReviewResult)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, http.MethodGet)
	if !ok {
		return
	}
	state, err := h.state.GetState(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleBaselineStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	if _, err := h.baseline.Start(r.Context(), req.UserID, app.KindBaseline); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.baseline.State(r.Context(), req.UserID, app.KindBaseline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleBaselineAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		StepType    string `json:"stepType"`
		StepID      string `json:"stepId"`
		Ack         *bool  `json:"ack,omitempty"`
		OptionIndex *int   `json:"optionIndex,omitempty"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	answer := domain.Answer{Ack: req.Ack, OptionIndex: req.OptionIndex}
	if _, err := h.baseline.Answer(r.Context(), req.UserID, app.KindBaseline, domain.StepKind(req.StepType), req.StepID, answer); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.baseline.State(r.Context(), req.UserID, app.KindBaseline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleBaselineSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, result, err := h.baseline.Submit(r.Context(), req.UserID, app.KindBaseline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "result": result})
}

func (h *Handler) handleBaselineState(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, http.MethodGet)
	if !ok {
		return
	}
	state, err := h.baseline.State(r.Context(), userID, app.KindBaseline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleReviewChoose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Path   string `json:"path"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, err := h.review.Choose(r.Context(), req.UserID, domain.ReviewPath(req.Path))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewReviewSessionView(session))
}

func (h *Handler) handleReviewStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Force  bool   `json:"force"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, err := h.review.Start(r.Context(), req.UserID, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewReviewSessionView(session))
}

func (h *Handler) handleReviewAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		TestNo int    `json:"testNo"`
		Index  int    `json:"index"`
		Value  int    `json:"value"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, err := h.review.Answer(r.Context(), req.UserID, req.TestNo, req.Index, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewReviewSessionView(session))
}

func (h *Handler) handleReviewCompleteTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		TestNo int    `json:"testNo"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, err := h.review.CompleteTest(r.Context(), req.UserID, req.TestNo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewReviewSessionView(session))
}

func (h *Handler) handleReviewFinish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &req) || !nonEmptyUser(w, req.UserID) {
		return
	}
	session, err := h.review.Finish(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewReviewSessionView(session))
}

func (h *Handler) handleReviewResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, http.MethodGet)
	if !ok {
		return
	}
	view, err := h.review.Result(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func requireUser(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing userId", Kind: "bad_request"})
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Kind: "bad_request"})
		return false
	}
	return true
}

func nonEmptyUser(w http.ResponseWriter, userID string) bool {
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing userId", Kind: "bad_request"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Kind: kindFor(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrCatalogNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStepMismatch),
		errors.Is(err, domain.ErrSessionNotInProgress),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrTestsNotCompleted),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrMissingAnswer),
		errors.Is(err, domain.ErrConsentRequired),
		errors.Is(err, domain.ErrInvalidChoice):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrCatalogNotFound):
		return "catalog_not_found"
	case errors.Is(err, domain.ErrSessionNotInProgress):
		return "session_not_in_progress"
	case errors.Is(err, domain.ErrStepMismatch):
		return "step_mismatch"
	case errors.Is(err, domain.ErrConsentRequired):
		return "consent_required"
	case errors.Is(err, domain.ErrMissingAnswer):
		return "missing_answer"
	case errors.Is(err, domain.ErrInvalidAnswer):
		return "invalid_answer"
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, domain.ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, domain.ErrTestsNotCompleted):
		return "tests_not_completed"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "storage_error"
	}
}

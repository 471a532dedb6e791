package app

import (
	"context"
	"time"

	"growth-core-service/internal/domain"
)

// ReviewSessionView is the client-safe projection of a review session: the
// result body is withheld while locked.
type ReviewSessionView struct {
	Status           domain.ReviewStatus  `json:"status"`
	ChosenPath       domain.ReviewPath    `json:"chosenPath,omitempty"`
	CurrentTest      int                  `json:"currentTest"`
	CurrentIndex     int                  `json:"currentIndex"`
	Test1CompletedAt *time.Time           `json:"test1CompletedAt,omitempty"`
	Test2CompletedAt *time.Time           `json:"test2CompletedAt,omitempty"`
	Locked           bool                 `json:"locked"`
	LockMessage      string               `json:"lockMessage,omitempty"`
	Result           *domain.ReviewResult `json:"result,omitempty"`
}

// NewReviewSessionView redacts the result unless the session is unlocked.
func NewReviewSessionView(session domain.ReviewSession) ReviewSessionView {
	view := ReviewSessionView{
		Status:           session.Status,
		ChosenPath:       session.ChosenPath,
		CurrentTest:      session.CurrentTest,
		CurrentIndex:     session.CurrentIndex,
		Test1CompletedAt: session.Test1CompletedAt,
		Test2CompletedAt: session.Test2CompletedAt,
	}
	switch session.Status {
	case domain.ReviewUnlocked:
		view.Result = session.Result
	case domain.ReviewCompletedLocked:
		view.Locked = true
		view.LockMessage = LockedResultMessage
	}
	return view
}

// State is the one-call snapshot the mobile client renders from.
type State struct {
	Mode        Mode                 `json:"mode"`
	Entitlement domain.Entitlement   `json:"entitlement"`
	Access      AccessDecision       `json:"access"`
	Baseline    *BaselineState       `json:"baseline,omitempty"`
	Review      *ReviewSessionView   `json:"review,omitempty"`
	Progression *ProgressionOverview `json:"progression,omitempty"`
}

// StateService assembles getState: entitlement facts, progress facts, the
// access decision, and whichever sessions exist.
type StateService struct {
	users       UserStore
	baseline    *BaselineService
	reviews     ReviewStore
	progression *ProgressionService
	now         func() time.Time
}

func NewStateService(users UserStore, baseline *BaselineService, reviews ReviewStore, progression *ProgressionService) *StateService {
	return &StateService{users: users, baseline: baseline, reviews: reviews, progression: progression, now: time.Now}
}

// NewStateServiceWithClock is test-only for deterministic entitlement.
func NewStateServiceWithClock(users UserStore, baseline *BaselineService, reviews ReviewStore, progression *ProgressionService, now func() time.Time) *StateService {
	return &StateService{users: users, baseline: baseline, reviews: reviews, progression: progression, now: now}
}

func (s *StateService) GetState(ctx context.Context, userID string) (State, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return State{}, err
	}
	entitlement := domain.ResolveEntitlement(user.Plan, user.PlanExpiresAt, s.now())

	overview, err := s.progression.Overview(ctx, userID)
	if err != nil {
		return State{}, err
	}
	baselineState, err := s.baseline.State(ctx, userID, KindBaseline)
	if err != nil {
		return State{}, err
	}

	state := State{
		Mode:        DeriveMode(overview.HasProgress, baselineState.Session),
		Entitlement: entitlement,
		Access:      DecideAccess(entitlement.ViewTier, overview.HasProgress),
		Progression: &overview,
	}
	if baselineState.Session != nil || len(baselineState.Results) > 0 {
		state.Baseline = &baselineState
	}
	if review, ok, err := s.reviews.GetReview(ctx, userID); err != nil {
		return State{}, err
	} else if ok {
		view := NewReviewSessionView(review)
		state.Review = &view
	}
	return state, nil
}

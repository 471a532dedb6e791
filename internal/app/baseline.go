package app

import (
	"context"
	"fmt"
	"time"

	"growth-core-service/internal/domain"
)

// BaselineService runs the intake assessment: one stepper-driven session
// per user per catalog kind, scored and archived on submit.
type BaselineService struct {
	sessions SessionStore
	catalogs CatalogRepository
	now      func() time.Time
}

func NewBaselineService(sessions SessionStore, catalogs CatalogRepository) *BaselineService {
	return &BaselineService{sessions: sessions, catalogs: catalogs, now: time.Now}
}

// NewBaselineServiceWithClock is test-only for deterministic timestamps.
func NewBaselineServiceWithClock(sessions SessionStore, catalogs CatalogRepository, now func() time.Time) *BaselineService {
	return &BaselineService{sessions: sessions, catalogs: catalogs, now: now}
}

// Start is idempotent: an existing session of any status is returned as-is;
// otherwise a fresh one is created at the first step.
func (s *BaselineService) Start(ctx context.Context, userID, kind string) (domain.AssessmentSession, error) {
	catalog, err := s.catalogs.GetCatalog(ctx, kind)
	if err != nil {
		return domain.AssessmentSession{}, err
	}

	if existing, ok, err := s.sessions.GetSession(ctx, userID, kind); err != nil {
		return domain.AssessmentSession{}, err
	} else if ok {
		return existing, nil
	}

	session := domain.AssessmentSession{
		ID:           kind + ":" + userID,
		UserID:       userID,
		Kind:         kind,
		Status:       domain.SessionInProgress,
		CurrentIndex: 0,
		TotalItems:   len(catalog.Steps),
		Answers:      make(map[string]domain.Answer),
		StartedAt:    s.now(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		if existing, ok, getErr := s.sessions.GetSession(ctx, userID, kind); getErr == nil && ok {
			// Lost a create race; the winner's session is the session.
			return existing, nil
		}
		return domain.AssessmentSession{}, err
	}
	return session, nil
}

// Answer applies one answer to the current step and persists the advanced
// cursor with a compare-and-set on the index it read.
func (s *BaselineService) Answer(ctx context.Context, userID, kind string, stepKind domain.StepKind, stepID string, answer domain.Answer) (domain.AssessmentSession, error) {
	session, catalog, err := s.load(ctx, userID, kind)
	if err != nil {
		return domain.AssessmentSession{}, err
	}
	if session.Status != domain.SessionInProgress {
		return domain.AssessmentSession{}, fmt.Errorf("%w: %s", domain.ErrSessionNotInProgress, session.Status)
	}

	observedIndex := session.CurrentIndex
	if err := ApplyAnswer(catalog, &session, stepKind, stepID, answer); err != nil {
		return domain.AssessmentSession{}, err
	}
	if err := s.sessions.SaveSession(ctx, session, observedIndex); err != nil {
		return domain.AssessmentSession{}, err
	}
	return session, nil
}

// Submit finalizes an exhausted session: completeness is re-validated,
// the score and band are computed and stored, and a wave-keyed result row
// is appended to the user's history. Neither a second submit nor a
// premature one mutates anything.
func (s *BaselineService) Submit(ctx context.Context, userID, kind string) (domain.AssessmentSession, domain.AssessmentResult, error) {
	session, catalog, err := s.load(ctx, userID, kind)
	if err != nil {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, err
	}
	if session.Status != domain.SessionInProgress {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, fmt.Errorf("%w: %s", domain.ErrSessionNotInProgress, session.Status)
	}
	if !Exhausted(catalog, session) {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, fmt.Errorf("%w: %d of %d steps answered", domain.ErrMissingAnswer, session.CurrentIndex, session.TotalItems)
	}

	total, band, err := Score(catalog, session.Answers)
	if err != nil {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, err
	}

	history, err := s.sessions.ListResults(ctx, userID, kind)
	if err != nil {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, err
	}

	observedIndex := session.CurrentIndex
	completedAt := s.now()
	session.Status = domain.SessionCompleted
	session.TotalScore = &total
	session.Band = &band.Name
	session.CompletedAt = &completedAt

	result := domain.AssessmentResult{
		UserID:         userID,
		Kind:           kind,
		Wave:           len(history) + 1,
		TotalScore:     total,
		Band:           band.Name,
		Interpretation: band.Interpretation,
		CompletedAt:    completedAt,
	}

	if err := s.sessions.SaveSession(ctx, session, observedIndex); err != nil {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, err
	}
	if err := s.sessions.SaveResult(ctx, result); err != nil {
		return domain.AssessmentSession{}, domain.AssessmentResult{}, err
	}
	return session, result, nil
}

// Restart replaces a completed session with a fresh one. Restarting an
// in-progress session is allowed too; history rows are untouched.
func (s *BaselineService) Restart(ctx context.Context, userID, kind string) (domain.AssessmentSession, error) {
	catalog, err := s.catalogs.GetCatalog(ctx, kind)
	if err != nil {
		return domain.AssessmentSession{}, err
	}
	session, ok, err := s.sessions.GetSession(ctx, userID, kind)
	if err != nil {
		return domain.AssessmentSession{}, err
	}
	if !ok {
		return s.Start(ctx, userID, kind)
	}

	observedIndex := session.CurrentIndex
	session.Status = domain.SessionInProgress
	session.CurrentIndex = 0
	session.TotalItems = len(catalog.Steps)
	session.Answers = make(map[string]domain.Answer)
	session.TotalScore = nil
	session.Band = nil
	session.CompletedAt = nil
	session.StartedAt = s.now()
	if err := s.sessions.SaveSession(ctx, session, observedIndex); err != nil {
		return domain.AssessmentSession{}, err
	}
	return session, nil
}

// BaselineState is the session plus the client-safe view of the pending
// step and the user's past results.
type BaselineState struct {
	Session     *domain.AssessmentSession `json:"session,omitempty"`
	CurrentStep *StepView                 `json:"currentStep,omitempty"`
	Results     []domain.AssessmentResult `json:"results,omitempty"`
}

// StepView strips score weights before a step leaves the server.
type StepView struct {
	ID      string          `json:"id"`
	Kind    domain.StepKind `json:"kind"`
	Prompt  string          `json:"prompt"`
	Options []string        `json:"options,omitempty"`
	Index   int             `json:"index"`
	Total   int             `json:"total"`
}

// NewStepView builds the client-safe projection of a catalog step.
func NewStepView(step domain.Step, index, total int) StepView {
	view := StepView{ID: step.ID, Kind: step.Kind, Prompt: step.Prompt, Index: index, Total: total}
	for _, o := range step.Options {
		view.Options = append(view.Options, o.Label)
	}
	return view
}

// State reports the session as it stands without creating one.
func (s *BaselineService) State(ctx context.Context, userID, kind string) (BaselineState, error) {
	results, err := s.sessions.ListResults(ctx, userID, kind)
	if err != nil {
		return BaselineState{}, err
	}
	session, ok, err := s.sessions.GetSession(ctx, userID, kind)
	if err != nil {
		return BaselineState{}, err
	}
	state := BaselineState{Results: results}
	if !ok {
		return state, nil
	}
	state.Session = &session
	if session.Status == domain.SessionInProgress {
		catalog, err := s.catalogs.GetCatalog(ctx, kind)
		if err != nil {
			return BaselineState{}, err
		}
		if step, live := CurrentStep(catalog, session); live {
			view := NewStepView(step, session.CurrentIndex, len(catalog.Steps))
			state.CurrentStep = &view
		}
	}
	return state, nil
}

func (s *BaselineService) load(ctx context.Context, userID, kind string) (domain.AssessmentSession, domain.Catalog, error) {
	session, ok, err := s.sessions.GetSession(ctx, userID, kind)
	if err != nil {
		return domain.AssessmentSession{}, domain.Catalog{}, err
	}
	if !ok {
		return domain.AssessmentSession{}, domain.Catalog{}, fmt.Errorf("%w: %s/%s", domain.ErrSessionNotFound, userID, kind)
	}
	catalog, err := s.catalogs.GetCatalog(ctx, session.Kind)
	if err != nil {
		return domain.AssessmentSession{}, domain.Catalog{}, err
	}
	return session, catalog, nil
}

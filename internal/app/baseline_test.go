package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
	"growth-core-service/internal/infra/memory"
)

func newBaselineFixture() (*app.BaselineService, *memory.SessionStore) {
	sessions := memory.NewSessionStore()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(map[string]domain.Catalog{
		app.KindBaseline: intakeCatalog(),
	}), 5*time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	service := app.NewBaselineServiceWithClock(sessions, catalogs, func() time.Time { return now })
	return service, sessions
}

func TestStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _ := newBaselineFixture()

	first, err := service.Start(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.CurrentIndex != 0 || first.Status != domain.SessionInProgress || first.TotalItems != 12 {
		t.Fatalf("unexpected fresh session: %+v", first)
	}

	second, err := service.Start(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.ID != first.ID || second.CurrentIndex != first.CurrentIndex {
		t.Fatalf("start not idempotent: %+v vs %+v", first, second)
	}
}

func TestAnswerAdvancesAndPersists(t *testing.T) {
	ctx := context.Background()
	service, sessions := newBaselineFixture()

	if _, err := service.Start(ctx, "u1", app.KindBaseline); err != nil {
		t.Fatalf("start: %v", err)
	}
	session, err := service.Answer(ctx, "u1", app.KindBaseline, domain.StepConsent, "c1", domain.AckAnswer(true))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if session.CurrentIndex != 1 {
		t.Fatalf("expected cursor 1, got %d", session.CurrentIndex)
	}

	stored, ok, err := sessions.GetSession(ctx, "u1", app.KindBaseline)
	if err != nil || !ok {
		t.Fatalf("stored session missing: %v", err)
	}
	if stored.CurrentIndex != 1 {
		t.Fatalf("advance not persisted: %+v", stored)
	}

	// Answering an out-of-order step fails and persists nothing.
	if _, err := service.Answer(ctx, "u1", app.KindBaseline, domain.StepQuestion, "q05", domain.ChoiceAnswer(1)); !errors.Is(err, domain.ErrStepMismatch) {
		t.Fatalf("expected step mismatch, got %v", err)
	}
	stored, _, _ = sessions.GetSession(ctx, "u1", app.KindBaseline)
	if stored.CurrentIndex != 1 {
		t.Fatalf("mismatch mutated stored cursor: %d", stored.CurrentIndex)
	}
}

func TestSubmitScoresAndArchivesWave(t *testing.T) {
	ctx := context.Background()
	service, _ := newBaselineFixture()

	runThrough(t, service, "u1", 3, 0) // five 3s, five 0s => 15

	session, result, err := service.Submit(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if session.Status != domain.SessionCompleted || session.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", session)
	}
	if session.TotalScore == nil || *session.TotalScore != 15 || session.Band == nil || *session.Band != "moderate" {
		t.Fatalf("expected 15/moderate, got %+v", session)
	}
	if result.Wave != 1 || result.TotalScore != 15 || result.Band != "moderate" {
		t.Fatalf("unexpected result row: %+v", result)
	}

	// A second submit fails without mutating anything.
	if _, _, err := service.Submit(ctx, "u1", app.KindBaseline); !errors.Is(err, domain.ErrSessionNotInProgress) {
		t.Fatalf("expected not-in-progress on resubmit, got %v", err)
	}

	// Restart and retake: wave 2.
	if _, err := service.Restart(ctx, "u1", app.KindBaseline); err != nil {
		t.Fatalf("restart: %v", err)
	}
	runThrough(t, service, "u1", 3, 3)
	_, result, err = service.Submit(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if result.Wave != 2 {
		t.Fatalf("expected wave 2, got %d", result.Wave)
	}

	state, err := service.State(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(state.Results) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(state.Results))
	}
}

func TestSubmitBeforeExhaustionFails(t *testing.T) {
	ctx := context.Background()
	service, sessions := newBaselineFixture()

	if _, err := service.Start(ctx, "u1", app.KindBaseline); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Answer(ctx, "u1", app.KindBaseline, domain.StepConsent, "c1", domain.AckAnswer(true)); err != nil {
		t.Fatalf("answer: %v", err)
	}

	_, _, err := service.Submit(ctx, "u1", app.KindBaseline)
	if !errors.Is(err, domain.ErrMissingAnswer) {
		t.Fatalf("expected missing answer, got %v", err)
	}
	stored, _, _ := sessions.GetSession(ctx, "u1", app.KindBaseline)
	if stored.Status != domain.SessionInProgress {
		t.Fatalf("premature submit mutated status: %s", stored.Status)
	}
}

func TestAnswerOnMissingSessionFails(t *testing.T) {
	ctx := context.Background()
	service, _ := newBaselineFixture()

	_, err := service.Answer(ctx, "ghost", app.KindBaseline, domain.StepConsent, "c1", domain.AckAnswer(true))
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestConcurrentAnswersCannotDoubleAdvance(t *testing.T) {
	ctx := context.Background()
	_, sessions := newBaselineFixture()

	session := domain.AssessmentSession{
		ID: "baseline:u1", UserID: "u1", Kind: app.KindBaseline,
		Status: domain.SessionInProgress, TotalItems: 12,
		Answers: map[string]domain.Answer{},
	}
	if err := sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two writers read cursor 0; only the first conditional save wins.
	session.CurrentIndex = 1
	if err := sessions.SaveSession(ctx, session, 0); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := sessions.SaveSession(ctx, session, 0); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for stale save, got %v", err)
	}
}

func runThrough(t *testing.T, service *app.BaselineService, userID string, highChoice, lowChoice int) {
	t.Helper()
	ctx := context.Background()
	if _, err := service.Start(ctx, userID, app.KindBaseline); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, id := range []string{"c1", "c2"} {
		if _, err := service.Answer(ctx, userID, app.KindBaseline, domain.StepConsent, id, domain.AckAnswer(true)); err != nil {
			t.Fatalf("consent %s: %v", id, err)
		}
	}
	for i := 1; i <= 10; i++ {
		choice := highChoice
		if i > 5 {
			choice = lowChoice
		}
		id := fmt.Sprintf("q%02d", i)
		if _, err := service.Answer(ctx, userID, app.KindBaseline, domain.StepQuestion, id, domain.ChoiceAnswer(choice)); err != nil {
			t.Fatalf("question %s: %v", id, err)
		}
	}
}

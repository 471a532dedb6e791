package app_test

import (
	"context"
	"testing"
	"time"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
	"growth-core-service/internal/infra/memory"
)

func curriculumFixture() []domain.Stage {
	return []domain.Stage{
		{
			ID: "st2", Code: "deepening", SortOrder: 2,
			Days: []domain.Day{
				{ID: "d3", StageID: "st2", DayNumberIn: 1, GlobalDayNumber: 3},
			},
		},
		{
			ID: "st1", Code: "grounding", SortOrder: 1,
			Days: []domain.Day{
				{ID: "d2", StageID: "st1", DayNumberIn: 2, GlobalDayNumber: 2},
				{ID: "d1", StageID: "st1", DayNumberIn: 1, GlobalDayNumber: 1},
			},
		},
	}
}

func TestActiveDayPrefersMostRecentActivity(t *testing.T) {
	stages := curriculumFixture()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.DayProgress{
		{UserID: "u1", DayID: "d1", Status: domain.DayDone, LastActivityAt: base.Add(3 * time.Hour)},
		{UserID: "u1", DayID: "d2", Status: domain.DayActive, LastActivityAt: base.Add(time.Hour)},
		{UserID: "u1", DayID: "d3", Status: domain.DayActive, LastActivityAt: base.Add(2 * time.Hour)},
	}
	day, ok := app.ActiveDay(stages, rows)
	if !ok || day.ID != "d3" {
		t.Fatalf("expected d3 (latest active), got %+v ok=%v", day, ok)
	}
}

func TestActiveDayBreaksTiesByDayID(t *testing.T) {
	stages := curriculumFixture()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.DayProgress{
		{UserID: "u1", DayID: "d3", Status: domain.DayActive, LastActivityAt: at},
		{UserID: "u1", DayID: "d2", Status: domain.DayActive, LastActivityAt: at},
	}
	day, ok := app.ActiveDay(stages, rows)
	if !ok || day.ID != "d2" {
		t.Fatalf("expected d2 on tie, got %+v ok=%v", day, ok)
	}
}

func TestActiveDayFallsBackToFirstDayOfFirstStage(t *testing.T) {
	stages := curriculumFixture()

	// No rows at all: first day of the first stage by sort order.
	day, ok := app.ActiveDay(stages, nil)
	if !ok || day.ID != "d1" {
		t.Fatalf("expected d1 fallback, got %+v ok=%v", day, ok)
	}

	// Only done rows: same fallback.
	rows := []domain.DayProgress{
		{UserID: "u1", DayID: "d1", Status: domain.DayDone, LastActivityAt: time.Now()},
	}
	day, ok = app.ActiveDay(stages, rows)
	if !ok || day.ID != "d1" {
		t.Fatalf("expected d1 fallback for done-only rows, got %+v ok=%v", day, ok)
	}

	// Rows referencing unknown days are ignored.
	rows = []domain.DayProgress{
		{UserID: "u1", DayID: "ghost", Status: domain.DayActive, LastActivityAt: time.Now()},
	}
	day, ok = app.ActiveDay(stages, rows)
	if !ok || day.ID != "d1" {
		t.Fatalf("expected d1 fallback for unknown day row, got %+v ok=%v", day, ok)
	}

	if _, ok := app.ActiveDay(nil, nil); ok {
		t.Fatalf("empty curriculum should derive no day")
	}
}

func TestOverviewAssemblesProgressFacts(t *testing.T) {
	ctx := context.Background()
	progress := memory.NewProgressStore()
	service := app.NewProgressionService(memory.NewStaticCurriculum(curriculumFixture()), progress)

	// New user: no progress, fallback active day, zero XP, no streak.
	overview, err := service.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.HasProgress {
		t.Fatalf("fresh user reported progress")
	}
	if overview.ActiveDay == nil || overview.ActiveDay.ID != "d1" {
		t.Fatalf("expected fallback active day d1, got %+v", overview.ActiveDay)
	}
	if overview.XPTotal != 0 || overview.Streak != nil {
		t.Fatalf("fresh user has xp/streak: %+v", overview)
	}
	if len(overview.Stages) != 2 || overview.Stages[0].ID != "st1" {
		t.Fatalf("stages not ordered by sort order: %+v", overview.Stages)
	}
	if overview.Stages[0].Days[0].ID != "d1" {
		t.Fatalf("days not ordered by global day number: %+v", overview.Stages[0].Days)
	}

	at := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	progress.PutDayProgress(domain.DayProgress{UserID: "u1", DayID: "d2", Status: domain.DayActive, LastActivityAt: at})
	progress.PutTaskProgress(domain.TaskProgress{UserID: "u1", TaskID: "t1", DayID: "d2", IsDone: true, DoneAt: &at})
	progress.PutStreak(domain.Streak{UserID: "u1", CurrentDays: 4, BestDays: 9})
	progress.AppendXP("u1", 10, at)
	progress.AppendXP("u1", 25, at.Add(time.Hour))

	overview, err = service.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if !overview.HasProgress {
		t.Fatalf("expected progress")
	}
	if overview.ActiveDay == nil || overview.ActiveDay.ID != "d2" {
		t.Fatalf("expected active day d2, got %+v", overview.ActiveDay)
	}
	if overview.XPTotal != 35 {
		t.Fatalf("expected xp 35, got %d", overview.XPTotal)
	}
	if overview.Streak == nil || overview.Streak.CurrentDays != 4 {
		t.Fatalf("streak not surfaced: %+v", overview.Streak)
	}
	if len(overview.TaskProgress) != 1 {
		t.Fatalf("task rows not surfaced: %+v", overview.TaskProgress)
	}
}

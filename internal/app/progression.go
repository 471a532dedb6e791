package app

import (
	"context"
	"sort"

	"growth-core-service/internal/domain"
)

// ActiveDay derives the single day a user is on: the active progress row
// with the most recent activity wins; with no rows at all the first day of
// the first stage is the default. Deterministic in its inputs, ties broken
// by day id so concurrent external writes cannot flap the answer.
func ActiveDay(stages []domain.Stage, rows []domain.DayProgress) (domain.Day, bool) {
	days := make(map[string]domain.Day)
	ordered := orderedStages(stages)
	for _, stage := range ordered {
		for _, day := range stage.Days {
			days[day.ID] = day
		}
	}

	var best *domain.DayProgress
	for i := range rows {
		row := &rows[i]
		if row.Status != domain.DayActive {
			continue
		}
		if _, known := days[row.DayID]; !known {
			continue
		}
		if best == nil ||
			row.LastActivityAt.After(best.LastActivityAt) ||
			(row.LastActivityAt.Equal(best.LastActivityAt) && row.DayID < best.DayID) {
			best = row
		}
	}
	if best != nil {
		return days[best.DayID], true
	}

	for _, stage := range ordered {
		if len(stage.Days) > 0 {
			return stage.Days[0], true
		}
	}
	return domain.Day{}, false
}

// HasAnyProgress distinguishes returning users from new ones: any day
// progress row at all counts.
func HasAnyProgress(rows []domain.DayProgress) bool {
	return len(rows) > 0
}

func orderedStages(stages []domain.Stage) []domain.Stage {
	out := make([]domain.Stage, len(stages))
	copy(out, stages)
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	for s := range out {
		days := make([]domain.Day, len(out[s].Days))
		copy(days, out[s].Days)
		sort.Slice(days, func(i, j int) bool { return days[i].GlobalDayNumber < days[j].GlobalDayNumber })
		out[s].Days = days
	}
	return out
}

// ProgressionOverview is the read model of a user's treatment standing.
type ProgressionOverview struct {
	Stages       []domain.Stage        `json:"stages"`
	ActiveDay    *domain.Day           `json:"activeDay,omitempty"`
	DayProgress  []domain.DayProgress  `json:"dayProgress"`
	TaskProgress []domain.TaskProgress `json:"taskProgress"`
	Streak       *domain.Streak        `json:"streak,omitempty"`
	XPTotal      int                   `json:"xpTotal"`
	HasProgress  bool                  `json:"hasProgress"`
}

// ProgressionService assembles curriculum content with the user's progress
// rows. Streak and XP mutations belong to the external task-completion
// collaborator; this service only reads them.
type ProgressionService struct {
	curriculum CurriculumRepository
	progress   ProgressStore
}

func NewProgressionService(curriculum CurriculumRepository, progress ProgressStore) *ProgressionService {
	return &ProgressionService{curriculum: curriculum, progress: progress}
}

func (s *ProgressionService) Overview(ctx context.Context, userID string) (ProgressionOverview, error) {
	stages, err := s.curriculum.GetStages(ctx)
	if err != nil {
		return ProgressionOverview{}, err
	}
	dayRows, err := s.progress.DayProgress(ctx, userID)
	if err != nil {
		return ProgressionOverview{}, err
	}
	taskRows, err := s.progress.TaskProgress(ctx, userID)
	if err != nil {
		return ProgressionOverview{}, err
	}
	xp, err := s.progress.XPTotal(ctx, userID)
	if err != nil {
		return ProgressionOverview{}, err
	}

	overview := ProgressionOverview{
		Stages:       orderedStages(stages),
		DayProgress:  dayRows,
		TaskProgress: taskRows,
		XPTotal:      xp,
		HasProgress:  HasAnyProgress(dayRows),
	}
	if day, ok := ActiveDay(stages, dayRows); ok {
		overview.ActiveDay = &day
	}
	if streak, ok, err := s.progress.Streak(ctx, userID); err != nil {
		return ProgressionOverview{}, err
	} else if ok {
		overview.Streak = &streak
	}
	return overview, nil
}

package app

import (
	"context"

	"growth-core-service/internal/domain"
)

// Assessment kinds known to this core. Review tests reuse the catalog
// machinery under their own kinds.
const (
	KindBaseline    = "baseline"
	KindReviewTest1 = "review_test1"
	KindReviewTest2 = "review_test2"
)

// UserStore exposes the billing collaborator's raw plan fields.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// CatalogRepository loads assessment content (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, kind string) (domain.Catalog, error)
}

// CurriculumRepository loads the immutable stage/day/task tree.
type CurriculumRepository interface {
	GetStages(ctx context.Context) ([]domain.Stage, error)
}

// SessionStore persists baseline-style assessment sessions and their
// wave-keyed result history. Save is conditional on the currentIndex the
// caller read; a stale save returns domain.ErrConflict so two concurrent
// answers can never both advance the same cursor.
type SessionStore interface {
	GetSession(ctx context.Context, userID, kind string) (domain.AssessmentSession, bool, error)
	CreateSession(ctx context.Context, session domain.AssessmentSession) error
	SaveSession(ctx context.Context, session domain.AssessmentSession, expectedIndex int) error
	SaveResult(ctx context.Context, result domain.AssessmentResult) error
	ListResults(ctx context.Context, userID, kind string) ([]domain.AssessmentResult, error)
}

// ReviewStore persists the per-user review session. Save is conditional on
// the Version the caller read and bumps it on success.
type ReviewStore interface {
	GetReview(ctx context.Context, userID string) (domain.ReviewSession, bool, error)
	SaveReview(ctx context.Context, session domain.ReviewSession) error
}

// ProgressStore reads the per-user progress rows owned by the external
// task-completion collaborator.
type ProgressStore interface {
	DayProgress(ctx context.Context, userID string) ([]domain.DayProgress, error)
	TaskProgress(ctx context.Context, userID string) ([]domain.TaskProgress, error)
	Streak(ctx context.Context, userID string) (domain.Streak, bool, error)
	XPTotal(ctx context.Context, userID string) (int, error)
}

package app

import (
	"context"
	"fmt"
	"time"

	"growth-core-service/internal/domain"
)

// LockedResultMessage is the only result content the server emits while a
// review result is paywalled. The real result is never sent and hidden
// client-side.
const LockedResultMessage = "Your review results are ready. Unlock them with a Pro subscription."

// unanswered marks a review item with no recorded value yet.
const unanswered = -1

// ResultBuilder turns the two completed answer sets into the persisted
// review result. Pluggable so interpretation content can evolve without
// touching session mechanics.
type ResultBuilder interface {
	Build(test1Catalog, test2Catalog domain.Catalog, answers domain.ReviewAnswers) (domain.ReviewResult, error)
}

// ReviewService runs the two-part relationship review: a path-choice gate,
// two sequential tests, and a result whose visibility is gated by
// entitlement after the fact.
//
// Unlike the baseline stepper, answers within the active test may be
// written at any in-range index, including overwriting earlier ones. The
// review is a reflective instrument, not a screener, so revisiting answers
// before completing a test is allowed; crossing into the other test is not.
type ReviewService struct {
	reviews  ReviewStore
	users    UserStore
	catalogs CatalogRepository
	builder  ResultBuilder
	now      func() time.Time
}

func NewReviewService(reviews ReviewStore, users UserStore, catalogs CatalogRepository, builder ResultBuilder) *ReviewService {
	return &ReviewService{reviews: reviews, users: users, catalogs: catalogs, builder: builder, now: time.Now}
}

// NewReviewServiceWithClock is test-only for deterministic timestamps.
func NewReviewServiceWithClock(reviews ReviewStore, users UserStore, catalogs CatalogRepository, builder ResultBuilder, now func() time.Time) *ReviewService {
	return &ReviewService{reviews: reviews, users: users, catalogs: catalogs, builder: builder, now: now}
}

// Choose persists the user's path choice, creating the session on first
// contact. Re-choosing overwrites until the session is completed.
func (s *ReviewService) Choose(ctx context.Context, userID string, path domain.ReviewPath) (domain.ReviewSession, error) {
	if path != domain.PathSkipReview && path != domain.PathReview {
		return domain.ReviewSession{}, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, path)
	}

	session, ok, err := s.reviews.GetReview(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if !ok {
		session, err = s.create(ctx, userID)
		if err != nil {
			return domain.ReviewSession{}, err
		}
	}
	if session.Status != domain.ReviewInProgress {
		return domain.ReviewSession{}, fmt.Errorf("%w: path is fixed after completion", domain.ErrSessionNotInProgress)
	}

	session.ChosenPath = path
	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

// Start creates the session or, with force, resets a completed one for a
// re-take. Restarting a completed session without force is rejected.
// Starting an existing in-progress session is idempotent.
func (s *ReviewService) Start(ctx context.Context, userID string, force bool) (domain.ReviewSession, error) {
	session, ok, err := s.reviews.GetReview(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if !ok {
		return s.create(ctx, userID)
	}
	if session.Status == domain.ReviewInProgress {
		return session, nil
	}
	if !force {
		return domain.ReviewSession{}, fmt.Errorf("%w: pass force to retake the review", domain.ErrAlreadyCompleted)
	}

	len1, len2, err := s.testLengths(ctx)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	session.Status = domain.ReviewInProgress
	session.CurrentTest = 1
	session.CurrentIndex = 0
	session.Test1CompletedAt = nil
	session.Test2CompletedAt = nil
	session.Answers = emptyAnswers(len1, len2)
	session.Result = nil
	session.PaywallShownAt = nil
	session.UnlockedAt = nil
	session.StartedAt = s.now()
	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

// Answer records a value for one item of the active test. Any in-range
// index of the active test may be written or overwritten; answering the
// other test is a mismatch.
func (s *ReviewService) Answer(ctx context.Context, userID string, testNo, index, value int) (domain.ReviewSession, error) {
	session, err := s.inProgress(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if testNo != 1 && testNo != 2 {
		return domain.ReviewSession{}, fmt.Errorf("%w: test %d", domain.ErrInvalidAnswer, testNo)
	}
	if testNo != session.CurrentTest {
		return domain.ReviewSession{}, fmt.Errorf("%w: test %d is not active", domain.ErrStepMismatch, testNo)
	}

	catalog, err := s.catalogs.GetCatalog(ctx, reviewKind(testNo))
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if index < 0 || index >= len(catalog.Steps) {
		return domain.ReviewSession{}, fmt.Errorf("%w: index %d out of range for test %d", domain.ErrInvalidAnswer, index, testNo)
	}
	step := catalog.Steps[index]
	if value < 0 || value >= len(step.Options) {
		return domain.ReviewSession{}, fmt.Errorf("%w: option %d out of range for item %q", domain.ErrInvalidAnswer, value, step.ID)
	}

	answers := testAnswers(&session, testNo)
	if len(*answers) != len(catalog.Steps) {
		*answers = resize(*answers, len(catalog.Steps))
	}
	(*answers)[index] = value
	if index+1 > session.CurrentIndex {
		session.CurrentIndex = index + 1
	}

	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

// CompleteTest stamps the active test's completion once every item has a
// value; completing test 1 rolls the cursor to test 2.
func (s *ReviewService) CompleteTest(ctx context.Context, userID string, testNo int) (domain.ReviewSession, error) {
	session, err := s.inProgress(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if testNo != session.CurrentTest {
		return domain.ReviewSession{}, fmt.Errorf("%w: test %d is not active", domain.ErrStepMismatch, testNo)
	}

	catalog, err := s.catalogs.GetCatalog(ctx, reviewKind(testNo))
	if err != nil {
		return domain.ReviewSession{}, err
	}
	answers := *testAnswers(&session, testNo)
	for i := 0; i < len(catalog.Steps); i++ {
		if i >= len(answers) || answers[i] == unanswered {
			return domain.ReviewSession{}, fmt.Errorf("%w: test %d item %d", domain.ErrMissingAnswer, testNo, i)
		}
	}

	completedAt := s.now()
	switch testNo {
	case 1:
		session.Test1CompletedAt = &completedAt
		session.CurrentTest = 2
		session.CurrentIndex = 0
	case 2:
		session.Test2CompletedAt = &completedAt
	}
	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

// Finish computes the result exactly once and locks it unless the user is
// currently entitled. The stored result is a historical fact; later
// entitlement changes only toggle visibility.
func (s *ReviewService) Finish(ctx context.Context, userID string) (domain.ReviewSession, error) {
	session, err := s.inProgress(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if session.Test1CompletedAt == nil || session.Test2CompletedAt == nil {
		return domain.ReviewSession{}, domain.ErrTestsNotCompleted
	}

	cat1, err := s.catalogs.GetCatalog(ctx, KindReviewTest1)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	cat2, err := s.catalogs.GetCatalog(ctx, KindReviewTest2)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	result, err := s.builder.Build(cat1, cat2, session.Answers)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	session.Result = &result

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	now := s.now()
	if domain.ResolveEntitlement(user.Plan, user.PlanExpiresAt, now).IsPro {
		session.Status = domain.ReviewUnlocked
		session.UnlockedAt = &now
	} else {
		session.Status = domain.ReviewCompletedLocked
	}

	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

// ReviewResultView is what leaves the server for a finished review. While
// locked, Result stays nil and Message carries the paywall copy.
type ReviewResultView struct {
	Status         domain.ReviewStatus  `json:"status"`
	Locked         bool                 `json:"locked"`
	Message        string               `json:"message,omitempty"`
	Result         *domain.ReviewResult `json:"result,omitempty"`
	UnlockedAt     *time.Time           `json:"unlockedAt,omitempty"`
	PaywallShownAt *time.Time           `json:"paywallShownAt,omitempty"`
}

// Result returns the finished review. A locked result whose owner became
// entitled since finish is unlocked in place, without recomputation; a
// still-locked one stamps paywallShownAt on first view and exposes only
// the lock message.
func (s *ReviewService) Result(ctx context.Context, userID string) (ReviewResultView, error) {
	session, ok, err := s.reviews.GetReview(ctx, userID)
	if err != nil {
		return ReviewResultView{}, err
	}
	if !ok {
		return ReviewResultView{}, fmt.Errorf("%w: review %s", domain.ErrSessionNotFound, userID)
	}
	if session.Status == domain.ReviewInProgress {
		return ReviewResultView{}, domain.ErrTestsNotCompleted
	}

	if session.Status == domain.ReviewCompletedLocked {
		user, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return ReviewResultView{}, err
		}
		now := s.now()
		if domain.ResolveEntitlement(user.Plan, user.PlanExpiresAt, now).IsPro {
			session.Status = domain.ReviewUnlocked
			session.UnlockedAt = &now
			if err := s.reviews.SaveReview(ctx, session); err != nil {
				return ReviewResultView{}, err
			}
			session.Version++
		} else if session.PaywallShownAt == nil {
			session.PaywallShownAt = &now
			if err := s.reviews.SaveReview(ctx, session); err != nil {
				return ReviewResultView{}, err
			}
			session.Version++
		}
	}

	view := ReviewResultView{
		Status:         session.Status,
		UnlockedAt:     session.UnlockedAt,
		PaywallShownAt: session.PaywallShownAt,
	}
	if session.Status == domain.ReviewCompletedLocked {
		view.Locked = true
		view.Message = LockedResultMessage
		return view, nil
	}
	view.Result = session.Result
	return view, nil
}

func (s *ReviewService) create(ctx context.Context, userID string) (domain.ReviewSession, error) {
	len1, len2, err := s.testLengths(ctx)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	session := domain.ReviewSession{
		ID:          "review:" + userID,
		UserID:      userID,
		Status:      domain.ReviewInProgress,
		CurrentTest: 1,
		Answers:     emptyAnswers(len1, len2),
		StartedAt:   s.now(),
	}
	if err := s.reviews.SaveReview(ctx, session); err != nil {
		return domain.ReviewSession{}, err
	}
	session.Version++
	return session, nil
}

func (s *ReviewService) inProgress(ctx context.Context, userID string) (domain.ReviewSession, error) {
	session, ok, err := s.reviews.GetReview(ctx, userID)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	if !ok {
		return domain.ReviewSession{}, fmt.Errorf("%w: review %s", domain.ErrSessionNotFound, userID)
	}
	if session.Status != domain.ReviewInProgress {
		return domain.ReviewSession{}, fmt.Errorf("%w: %s", domain.ErrSessionNotInProgress, session.Status)
	}
	return session, nil
}

func (s *ReviewService) testLengths(ctx context.Context) (int, int, error) {
	cat1, err := s.catalogs.GetCatalog(ctx, KindReviewTest1)
	if err != nil {
		return 0, 0, err
	}
	cat2, err := s.catalogs.GetCatalog(ctx, KindReviewTest2)
	if err != nil {
		return 0, 0, err
	}
	return len(cat1.Steps), len(cat2.Steps), nil
}

func reviewKind(testNo int) string {
	if testNo == 1 {
		return KindReviewTest1
	}
	return KindReviewTest2
}

func emptyAnswers(len1, len2 int) domain.ReviewAnswers {
	return domain.ReviewAnswers{Test1: resize(nil, len1), Test2: resize(nil, len2)}
}

func testAnswers(session *domain.ReviewSession, testNo int) *[]int {
	if testNo == 1 {
		return &session.Answers.Test1
	}
	return &session.Answers.Test2
}

func resize(in []int, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = unanswered
	}
	copy(out, in)
	return out
}

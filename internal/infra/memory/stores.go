package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"growth-core-service/internal/domain"
)

// UserStore is an in-memory implementation of app.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

// Put seeds or replaces a user record (billing is external in production).
func (s *UserStore) Put(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *UserStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return user, nil
}

// SessionStore is an in-memory implementation of app.SessionStore with the
// same compare-and-set contract as the Postgres store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.AssessmentSession
	results  map[string][]domain.AssessmentResult
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.AssessmentSession),
		results:  make(map[string][]domain.AssessmentResult),
	}
}

func sessionKey(userID, kind string) string {
	return userID + "/" + kind
}

func (s *SessionStore) GetSession(_ context.Context, userID, kind string) (domain.AssessmentSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey(userID, kind)]
	if ok {
		session.Answers = copyAnswers(session.Answers)
	}
	return session, ok, nil
}

func (s *SessionStore) CreateSession(_ context.Context, session domain.AssessmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(session.UserID, session.Kind)
	if _, exists := s.sessions[key]; exists {
		return domain.ErrConflict
	}
	session.Answers = copyAnswers(session.Answers)
	s.sessions[key] = session
	return nil
}

func (s *SessionStore) SaveSession(_ context.Context, session domain.AssessmentSession, expectedIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(session.UserID, session.Kind)
	current, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, key)
	}
	if current.CurrentIndex != expectedIndex {
		return domain.ErrConflict
	}
	session.Answers = copyAnswers(session.Answers)
	s.sessions[key] = session
	return nil
}

func (s *SessionStore) SaveResult(_ context.Context, result domain.AssessmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(result.UserID, result.Kind)
	s.results[key] = append(s.results[key], result)
	sort.Slice(s.results[key], func(i, j int) bool { return s.results[key][i].Wave < s.results[key][j].Wave })
	return nil
}

func (s *SessionStore) ListResults(_ context.Context, userID, kind string) ([]domain.AssessmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.results[sessionKey(userID, kind)]
	out := make([]domain.AssessmentResult, len(rows))
	copy(out, rows)
	return out, nil
}

func copyAnswers(in map[string]domain.Answer) map[string]domain.Answer {
	if in == nil {
		return nil
	}
	out := make(map[string]domain.Answer, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ReviewStore is an in-memory implementation of app.ReviewStore with
// version-based optimistic concurrency.
type ReviewStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.ReviewSession
}

func NewReviewStore() *ReviewStore {
	return &ReviewStore{sessions: make(map[string]domain.ReviewSession)}
}

func (s *ReviewStore) GetReview(_ context.Context, userID string) (domain.ReviewSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if ok {
		session.Answers = copyReviewAnswers(session.Answers)
	}
	return session, ok, nil
}

func (s *ReviewStore) SaveReview(_ context.Context, session domain.ReviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.sessions[session.UserID]
	if exists && current.Version != session.Version {
		return domain.ErrConflict
	}
	if !exists && session.Version != 0 {
		return domain.ErrConflict
	}
	session.Version++
	session.Answers = copyReviewAnswers(session.Answers)
	s.sessions[session.UserID] = session
	return nil
}

func copyReviewAnswers(in domain.ReviewAnswers) domain.ReviewAnswers {
	out := domain.ReviewAnswers{
		Test1: make([]int, len(in.Test1)),
		Test2: make([]int, len(in.Test2)),
	}
	copy(out.Test1, in.Test1)
	copy(out.Test2, in.Test2)
	return out
}

// ProgressStore is an in-memory implementation of app.ProgressStore. The
// Put/Append seeding methods stand in for the external task-completion
// collaborator's update hooks; the XP ledger is append-only.
type ProgressStore struct {
	mu      sync.RWMutex
	days    map[string][]domain.DayProgress
	tasks   map[string][]domain.TaskProgress
	streaks map[string]domain.Streak
	ledger  map[string][]domain.XPEntry
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		days:    make(map[string][]domain.DayProgress),
		tasks:   make(map[string][]domain.TaskProgress),
		streaks: make(map[string]domain.Streak),
		ledger:  make(map[string][]domain.XPEntry),
	}
}

func (s *ProgressStore) PutDayProgress(row domain.DayProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.days[row.UserID]
	for i := range rows {
		if rows[i].DayID == row.DayID {
			rows[i] = row
			return
		}
	}
	s.days[row.UserID] = append(rows, row)
}

func (s *ProgressStore) PutTaskProgress(row domain.TaskProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tasks[row.UserID]
	for i := range rows {
		if rows[i].TaskID == row.TaskID {
			rows[i] = row
			return
		}
	}
	s.tasks[row.UserID] = append(rows, row)
}

func (s *ProgressStore) PutStreak(streak domain.Streak) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[streak.UserID] = streak
}

func (s *ProgressStore) AppendXP(userID string, amount int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[userID] = append(s.ledger[userID], domain.XPEntry{UserID: userID, Amount: amount, Timestamp: at})
}

func (s *ProgressStore) DayProgress(_ context.Context, userID string) ([]domain.DayProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.days[userID]
	out := make([]domain.DayProgress, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *ProgressStore) TaskProgress(_ context.Context, userID string) ([]domain.TaskProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tasks[userID]
	out := make([]domain.TaskProgress, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *ProgressStore) Streak(_ context.Context, userID string) (domain.Streak, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streak, ok := s.streaks[userID]
	return streak, ok, nil
}

func (s *ProgressStore) XPTotal(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entry := range s.ledger[userID] {
		total += entry.Amount
	}
	return total, nil
}

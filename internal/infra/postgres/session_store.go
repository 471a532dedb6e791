package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"growth-core-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SessionStore persists assessment sessions as JSONB rows. The cursor is
// mirrored into its own column so saves can compare-and-set on it: a save
// whose expected index no longer matches touches zero rows and the caller
// gets ErrConflict instead of a silent double advance.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) GetSession(ctx context.Context, userID, kind string) (domain.AssessmentSession, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM assessment_sessions WHERE user_id=$1 AND kind=$2`, userID, kind).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssessmentSession{}, false, nil
	}
	if err != nil {
		return domain.AssessmentSession{}, false, fmt.Errorf("%w: get session: %v", domain.ErrStorage, err)
	}
	var session domain.AssessmentSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.AssessmentSession{}, false, fmt.Errorf("%w: unmarshal session: %v", domain.ErrStorage, err)
	}
	return session, true, nil
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.AssessmentSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", domain.ErrStorage, err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO assessment_sessions (user_id, kind, current_index, data)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (user_id, kind) DO NOTHING`,
		session.UserID, session.Kind, session.CurrentIndex, raw)
	if err != nil {
		return fmt.Errorf("%w: create session: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *SessionStore) SaveSession(ctx context.Context, session domain.AssessmentSession, expectedIndex int) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", domain.ErrStorage, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE assessment_sessions SET current_index=$4, data=$5
		 WHERE user_id=$1 AND kind=$2 AND current_index=$3`,
		session.UserID, session.Kind, expectedIndex, session.CurrentIndex, raw)
	if err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		if _, ok, getErr := s.GetSession(ctx, session.UserID, session.Kind); getErr == nil && !ok {
			return fmt.Errorf("%w: %s/%s", domain.ErrSessionNotFound, session.UserID, session.Kind)
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *SessionStore) SaveResult(ctx context.Context, result domain.AssessmentResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: marshal result: %v", domain.ErrStorage, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessment_results (user_id, kind, wave, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, kind, wave) DO UPDATE SET data=EXCLUDED.data`,
		result.UserID, result.Kind, result.Wave, raw)
	if err != nil {
		return fmt.Errorf("%w: save result: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *SessionStore) ListResults(ctx context.Context, userID, kind string) ([]domain.AssessmentResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM assessment_results WHERE user_id=$1 AND kind=$2 ORDER BY wave`, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: list results: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.AssessmentResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan result: %v", domain.ErrStorage, err)
		}
		var result domain.AssessmentResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("%w: unmarshal result: %v", domain.ErrStorage, err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list results: %v", domain.ErrStorage, err)
	}
	return out, nil
}

// ReviewStore persists the per-user review session with a version column
// for optimistic concurrency.
type ReviewStore struct {
	pool *pgxpool.Pool
}

func NewReviewStore(pool *pgxpool.Pool) *ReviewStore {
	return &ReviewStore{pool: pool}
}

func (s *ReviewStore) GetReview(ctx context.Context, userID string) (domain.ReviewSession, bool, error) {
	var raw []byte
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT version, data FROM review_sessions WHERE user_id=$1`, userID).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReviewSession{}, false, nil
	}
	if err != nil {
		return domain.ReviewSession{}, false, fmt.Errorf("%w: get review: %v", domain.ErrStorage, err)
	}
	var session domain.ReviewSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.ReviewSession{}, false, fmt.Errorf("%w: unmarshal review: %v", domain.ErrStorage, err)
	}
	session.Version = version
	return session, true, nil
}

func (s *ReviewStore) SaveReview(ctx context.Context, session domain.ReviewSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshal review: %v", domain.ErrStorage, err)
	}

	if session.Version == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO review_sessions (user_id, version, data) VALUES ($1, 1, $2)
			 ON CONFLICT (user_id) DO NOTHING`, session.UserID, raw)
		if err != nil {
			return fmt.Errorf("%w: create review: %v", domain.ErrStorage, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE review_sessions SET version=version+1, data=$3 WHERE user_id=$1 AND version=$2`,
		session.UserID, session.Version, raw)
	if err != nil {
		return fmt.Errorf("%w: save review: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

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

// ProgressStore reads day/task progress, streaks, and the XP ledger. The
// rows are written by the external task-completion collaborator; a unique
// partial index on (user_id) WHERE active enforces the one-active-day
// invariant at the store, not in process.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) DayProgress(ctx context.Context, userID string) ([]domain.DayProgress, error) {
	return scanProgress[domain.DayProgress](ctx, s.pool,
		`SELECT data FROM day_progress WHERE user_id=$1 ORDER BY day_id`, userID, "day progress")
}

func (s *ProgressStore) TaskProgress(ctx context.Context, userID string) ([]domain.TaskProgress, error) {
	return scanProgress[domain.TaskProgress](ctx, s.pool,
		`SELECT data FROM task_progress WHERE user_id=$1 ORDER BY task_id`, userID, "task progress")
}

func (s *ProgressStore) Streak(ctx context.Context, userID string) (domain.Streak, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM streaks WHERE user_id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Streak{}, false, nil
	}
	if err != nil {
		return domain.Streak{}, false, fmt.Errorf("%w: get streak: %v", domain.ErrStorage, err)
	}
	var streak domain.Streak
	if err := json.Unmarshal(raw, &streak); err != nil {
		return domain.Streak{}, false, fmt.Errorf("%w: unmarshal streak: %v", domain.ErrStorage, err)
	}
	return streak, true, nil
}

func (s *ProgressStore) XPTotal(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM xp_ledger WHERE user_id=$1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w: xp total: %v", domain.ErrStorage, err)
	}
	return total, nil
}

func scanProgress[T any](ctx context.Context, pool *pgxpool.Pool, query, userID, what string) ([]T, error) {
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorage, what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStorage, what, err)
		}
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("%w: unmarshal %s: %v", domain.ErrStorage, what, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorage, what, err)
	}
	return out, nil
}

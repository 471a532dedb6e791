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

// CatalogLoader loads assessment catalogs stored as JSONB.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context, kind string) (domain.Catalog, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM catalogs WHERE kind=$1`, kind).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Catalog{}, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, kind)
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: load catalog: %v", domain.ErrStorage, err)
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: unmarshal catalog: %v", domain.ErrStorage, err)
	}
	return catalog, nil
}

// CurriculumRepository loads the stage/day/task tree from its single
// JSONB document.
type CurriculumRepository struct {
	pool *pgxpool.Pool
}

func NewCurriculumRepository(pool *pgxpool.Pool) *CurriculumRepository {
	return &CurriculumRepository{pool: pool}
}

func (r *CurriculumRepository) GetStages(ctx context.Context) ([]domain.Stage, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM curriculum WHERE id=1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load curriculum: %v", domain.ErrStorage, err)
	}
	var stages []domain.Stage
	if err := json.Unmarshal(raw, &stages); err != nil {
		return nil, fmt.Errorf("%w: unmarshal curriculum: %v", domain.ErrStorage, err)
	}
	return stages, nil
}

// UserStore reads the billing-owned plan fields.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user := domain.User{ID: userID}
	var plan string
	err := s.pool.QueryRow(ctx, `SELECT plan, plan_expires_at FROM users WHERE id=$1`, userID).
		Scan(&plan, &user.PlanExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: load user: %v", domain.ErrStorage, err)
	}
	user.Plan = domain.Plan(plan)
	return user, nil
}

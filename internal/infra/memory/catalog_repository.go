package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches assessment content from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, kind string) (domain.Catalog, error)
}

// CatalogRepository caches catalogs with TTL to avoid repeated store hits.
// Content is validated once on fill, never per request.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCatalog
}

type cachedCatalog struct {
	catalog   domain.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCatalog),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, kind string) (domain.Catalog, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[kind]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.catalog, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(kind, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[kind]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.catalog, nil
		}
		r.mu.RUnlock()

		catalog, err := r.loader.LoadCatalog(ctx, kind)
		if err != nil {
			return domain.Catalog{}, err
		}
		if err := app.ValidateCatalog(catalog); err != nil {
			return domain.Catalog{}, err
		}

		r.mu.Lock()
		r.cache[kind] = cachedCatalog{
			catalog:   catalog,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves catalogs from an in-memory map (tests/demos).
type StaticCatalogLoader struct {
	catalogs map[string]domain.Catalog
}

func NewStaticCatalogLoader(catalogs map[string]domain.Catalog) *StaticCatalogLoader {
	return &StaticCatalogLoader{catalogs: catalogs}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context, kind string) (domain.Catalog, error) {
	if catalog, ok := l.catalogs[kind]; ok {
		return catalog, nil
	}
	return domain.Catalog{}, domain.ErrCatalogNotFound
}

// StaticCurriculum serves a fixed stage tree (tests/demos).
type StaticCurriculum struct {
	stages []domain.Stage
}

func NewStaticCurriculum(stages []domain.Stage) *StaticCurriculum {
	return &StaticCurriculum{stages: stages}
}

func (c *StaticCurriculum) GetStages(_ context.Context) ([]domain.Stage, error) {
	out := make([]domain.Stage, len(c.stages))
	copy(out, c.stages)
	return out, nil
}

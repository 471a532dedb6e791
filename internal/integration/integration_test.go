package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"growth-core-service/internal/app"
	"growth-core-service/internal/domain"
	pgstore "growth-core-service/internal/infra/postgres"
	pgmigrations "growth-core-service/internal/infra/postgres/migrations"
	infraredis "growth-core-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAssessmentEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	catalogs := infraredis.NewCatalogRepository(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute)
	users := pgstore.NewUserStore(pool)
	sessions := pgstore.NewSessionStore(pool)
	reviews := pgstore.NewReviewStore(pool)
	progress := pgstore.NewProgressStore(pool)

	baseline := app.NewBaselineService(sessions, catalogs)
	review := app.NewReviewService(reviews, users, catalogs, app.NewBandedResultBuilder())
	progression := app.NewProgressionService(pgstore.NewCurriculumRepository(pool), progress)
	state := app.NewStateService(users, baseline, reviews, progression)

	snapshot, err := state.GetState(ctx, "u1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if snapshot.Mode != app.ModeIdle || snapshot.Access.Access != app.AccessArchiveOnly {
		t.Fatalf("unexpected initial state: %+v", snapshot)
	}

	// Baseline: consent, two questions, submit.
	if _, err := baseline.Start(ctx, "u1", app.KindBaseline); err != nil {
		t.Fatalf("baseline start: %v", err)
	}
	if _, err := baseline.Answer(ctx, "u1", app.KindBaseline, domain.StepConsent, "c1", domain.AckAnswer(true)); err != nil {
		t.Fatalf("consent: %v", err)
	}
	if _, err := baseline.Answer(ctx, "u1", app.KindBaseline, domain.StepQuestion, "q1", domain.ChoiceAnswer(2)); err != nil {
		t.Fatalf("q1: %v", err)
	}
	if _, err := baseline.Answer(ctx, "u1", app.KindBaseline, domain.StepQuestion, "q2", domain.ChoiceAnswer(2)); err != nil {
		t.Fatalf("q2: %v", err)
	}
	session, result, err := baseline.Submit(ctx, "u1", app.KindBaseline)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if session.Status != domain.SessionCompleted || result.Wave != 1 || result.TotalScore != 4 || result.Band != "severe" {
		t.Fatalf("unexpected submit outcome: %+v %+v", session, result)
	}

	snapshot, err = state.GetState(ctx, "u1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if snapshot.Mode != app.ModeChoosePath {
		t.Fatalf("expected choose_path, got %s", snapshot.Mode)
	}

	// Review: both tests, finish locked, then unlock via plan change.
	if _, err := review.Choose(ctx, "u1", domain.PathReview); err != nil {
		t.Fatalf("choose: %v", err)
	}
	for testNo := 1; testNo <= 2; testNo++ {
		for index := 0; index < 2; index++ {
			if _, err := review.Answer(ctx, "u1", testNo, index, 1); err != nil {
				t.Fatalf("review answer t%d i%d: %v", testNo, index, err)
			}
		}
		if _, err := review.CompleteTest(ctx, "u1", testNo); err != nil {
			t.Fatalf("complete test %d: %v", testNo, err)
		}
	}
	reviewSession, err := review.Finish(ctx, "u1")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if reviewSession.Status != domain.ReviewCompletedLocked {
		t.Fatalf("expected locked review for free user, got %s", reviewSession.Status)
	}

	view, err := review.Result(ctx, "u1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !view.Locked || view.Result != nil || view.PaywallShownAt == nil {
		t.Fatalf("locked view wrong: %+v", view)
	}

	if _, err := pool.Exec(ctx, `UPDATE users SET plan='pro' WHERE id='u1'`); err != nil {
		t.Fatalf("upgrade user: %v", err)
	}
	view, err = review.Result(ctx, "u1")
	if err != nil {
		t.Fatalf("result after upgrade: %v", err)
	}
	if view.Locked || view.Result == nil || view.UnlockedAt == nil {
		t.Fatalf("unlock failed: %+v", view)
	}

	// Progress rows flip the mode and the access decision survives restarts
	// of the in-memory layers because everything round-trips through the
	// stores.
	if _, err := pool.Exec(ctx,
		`INSERT INTO day_progress (user_id, day_id, data) VALUES ('u1', 'd1', $1)`,
		mustJSON(t, domain.DayProgress{UserID: "u1", DayID: "d1", Status: domain.DayActive, LastActivityAt: time.Now().UTC()})); err != nil {
		t.Fatalf("seed day progress: %v", err)
	}
	snapshot, err = state.GetState(ctx, "u1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if snapshot.Mode != app.ModeTreating || snapshot.Access.Access != app.AccessFull {
		t.Fatalf("expected treating with full access for pro, got %+v", snapshot)
	}
	if snapshot.Progression == nil || snapshot.Progression.ActiveDay == nil || snapshot.Progression.ActiveDay.ID != "d1" {
		t.Fatalf("active day not derived: %+v", snapshot.Progression)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "growth", "POSTGRES_PASSWORD": "growthpass", "POSTGRES_DB": "growthdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://growth:growthpass@%s:%s/growthdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for kind, catalog := range testCatalogs() {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO catalogs (kind, data) VALUES (?, ?::jsonb) ON CONFLICT (kind) DO UPDATE SET data=EXCLUDED.data`,
			kind, mustJSON(t, catalog)); err != nil {
			t.Fatalf("insert catalog %s: %v", kind, err)
		}
	}

	stages := []domain.Stage{
		{ID: "st1", Code: "grounding", SortOrder: 1, Days: []domain.Day{
			{ID: "d1", StageID: "st1", DayNumberIn: 1, GlobalDayNumber: 1, RequiredPercent: 80},
		}},
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO curriculum (id, data) VALUES (1, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		mustJSON(t, stages)); err != nil {
		t.Fatalf("insert curriculum: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO users (id, plan) VALUES ('u1', 'free') ON CONFLICT (id) DO NOTHING`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func testCatalogs() map[string]domain.Catalog {
	options := []domain.Option{
		{Label: "Never", Score: 0},
		{Label: "Sometimes", Score: 1},
		{Label: "Often", Score: 2},
	}
	baseline := domain.Catalog{
		Kind: app.KindBaseline,
		Steps: []domain.Step{
			{ID: "c1", Kind: domain.StepConsent, Prompt: "Not a diagnosis."},
			{ID: "q1", Kind: domain.StepQuestion, Prompt: "How often?", Options: options},
			{ID: "q2", Kind: domain.StepQuestion, Prompt: "How strongly?", Options: options},
		},
		Bands: []domain.Band{
			{Min: 0, Max: 2, Name: "mild", Interpretation: "mild"},
			{Min: 3, Max: 4, Name: "severe", Interpretation: "severe"},
		},
	}
	reviewCatalog := func(kind string) domain.Catalog {
		return domain.Catalog{
			Kind: kind,
			Steps: []domain.Step{
				{ID: kind + "-1", Kind: domain.StepQuestion, Prompt: "item", Options: options},
				{ID: kind + "-2", Kind: domain.StepQuestion, Prompt: "item", Options: options},
			},
			Bands: []domain.Band{
				{Min: 0, Max: 2, Name: "steady", Interpretation: "steady"},
				{Min: 3, Max: 4, Name: "strained", Interpretation: "strained"},
			},
		}
	}
	return map[string]domain.Catalog{
		app.KindBaseline:    baseline,
		app.KindReviewTest1: reviewCatalog(app.KindReviewTest1),
		app.KindReviewTest2: reviewCatalog(app.KindReviewTest2),
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"growth-core-service/internal/app"
	"growth-core-service/internal/config"
	"growth-core-service/internal/domain"
	"growth-core-service/internal/infra/memory"
	"growth-core-service/internal/infra/postgres"
	rediscache "growth-core-service/internal/infra/redis"
	transport "growth-core-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progression and assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleCatalogs())
	if pool != nil {
		loader = postgres.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs app.CatalogRepository
	if redisClient != nil {
		catalogs = rediscache.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var (
		users      app.UserStore
		sessions   app.SessionStore
		reviews    app.ReviewStore
		progress   app.ProgressStore
		curriculum app.CurriculumRepository
	)
	if pool != nil {
		users = postgres.NewUserStore(pool)
		sessions = postgres.NewSessionStore(pool)
		reviews = postgres.NewReviewStore(pool)
		progress = postgres.NewProgressStore(pool)
		curriculum = postgres.NewCurriculumRepository(pool)
	} else {
		// Demo wiring: everything in memory, one seeded free user.
		userStore := memory.NewUserStore()
		userStore.Put(domain.User{ID: "demo", Plan: domain.PlanFree})
		users = userStore
		sessions = memory.NewSessionStore()
		reviews = memory.NewReviewStore()
		progress = memory.NewProgressStore()
		curriculum = memory.NewStaticCurriculum(sampleCurriculum())
	}

	baseline := app.NewBaselineService(sessions, catalogs)
	review := app.NewReviewService(reviews, users, catalogs, app.NewBandedResultBuilder())
	progression := app.NewProgressionService(curriculum, progress)
	state := app.NewStateService(users, baseline, reviews, progression)

	handler := transport.NewHandler(state, baseline, review)
	wsHandler := transport.NewWSHandler(state, baseline, review)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting growth core on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleCatalogs provides minimal assessment content; production loads
// catalogs from Postgres.
func sampleCatalogs() map[string]domain.Catalog {
	likert := []domain.Option{
		{Label: "Never", Score: 0},
		{Label: "Sometimes", Score: 1},
		{Label: "Often", Score: 2},
		{Label: "Almost always", Score: 3},
	}

	baseline := domain.Catalog{
		Kind: app.KindBaseline,
		Steps: []domain.Step{
			{ID: "c1", Kind: domain.StepConsent, Prompt: "This assessment is not a medical diagnosis."},
			{ID: "c2", Kind: domain.StepConsent, Prompt: "Your answers are stored to personalize your program."},
		},
		Bands: []domain.Band{
			{Min: 0, Max: 9, Name: "mild", Interpretation: "Your responses suggest mild strain."},
			{Min: 10, Max: 19, Name: "moderate", Interpretation: "Your responses suggest moderate strain."},
			{Min: 20, Max: 30, Name: "severe", Interpretation: "Your responses suggest severe strain."},
		},
	}
	prompts := []string{
		"I find it hard to switch off after a stressful day.",
		"Small disagreements escalate quickly for me.",
		"I avoid conversations I expect to be difficult.",
		"I feel drained by my daily obligations.",
		"I struggle to name what I am feeling.",
		"I replay arguments in my head long after they end.",
		"I put off things that matter to me.",
		"I feel disconnected from the people close to me.",
		"I criticize myself harshly when things go wrong.",
		"I have trouble asking for support.",
	}
	for i, p := range prompts {
		baseline.Steps = append(baseline.Steps, domain.Step{
			ID:      fmt.Sprintf("q%02d", i+1),
			Kind:    domain.StepQuestion,
			Prompt:  p,
			Options: likert,
		})
	}

	test1 := domain.Catalog{Kind: app.KindReviewTest1, Bands: []domain.Band{
		{Min: 0, Max: 8, Name: "steady", Interpretation: "The relationship foundation looks steady."},
		{Min: 9, Max: 16, Name: "strained", Interpretation: "There are signs of strain worth attention."},
		{Min: 17, Max: 24, Name: "critical", Interpretation: "Several core areas are under pressure."},
	}}
	for i, p := range []string{
		"We talk openly about what bothers us.",
		"I feel heard when we disagree.",
		"We make time for each other.",
		"I trust my partner with difficult truths.",
		"We recover quickly after conflicts.",
		"I feel appreciated day to day.",
		"We share responsibilities fairly.",
		"I look forward to time together.",
	} {
		test1.Steps = append(test1.Steps, domain.Step{
			ID: "t1-" + string(rune('a'+i)), Kind: domain.StepQuestion, Prompt: p, Options: likert,
		})
	}

	test2 := domain.Catalog{Kind: app.KindReviewTest2, Bands: []domain.Band{
		{Min: 0, Max: 6, Name: "aligned", Interpretation: "Your expectations are largely aligned."},
		{Min: 7, Max: 12, Name: "diverging", Interpretation: "Your expectations are drifting apart."},
		{Min: 13, Max: 18, Name: "conflicting", Interpretation: "Your expectations are in conflict."},
	}}
	for i, p := range []string{
		"We agree on how to spend money.",
		"We agree on how much time to spend apart.",
		"We agree on long-term plans.",
		"We agree on how to handle family.",
		"We agree on intimacy and affection.",
		"We agree on how to raise disagreements.",
	} {
		test2.Steps = append(test2.Steps, domain.Step{
			ID: "t2-" + string(rune('a'+i)), Kind: domain.StepQuestion, Prompt: p, Options: likert,
		})
	}

	return map[string]domain.Catalog{
		app.KindBaseline:    baseline,
		app.KindReviewTest1: test1,
		app.KindReviewTest2: test2,
	}
}

// sampleCurriculum provides a tiny stage tree for the demo wiring.
func sampleCurriculum() []domain.Stage {
	return []domain.Stage{
		{
			ID: "s1", Code: "foundation", SortOrder: 1,
			Days: []domain.Day{
				{
					ID: "s1d1", StageID: "s1", DayNumberIn: 1, GlobalDayNumber: 1, RequiredPercent: 80,
					Tasks: []domain.Task{
						{ID: "s1d1t1", WeightPercent: 50, XPReward: 10, IsRequired: true},
						{ID: "s1d1t2", WeightPercent: 50, XPReward: 10, IsRequired: false},
					},
				},
				{
					ID: "s1d2", StageID: "s1", DayNumberIn: 2, GlobalDayNumber: 2, RequiredPercent: 80,
					Tasks: []domain.Task{
						{ID: "s1d2t1", WeightPercent: 100, XPReward: 20, IsRequired: true},
					},
				},
			},
		},
		{
			ID: "s2", Code: "deepening", SortOrder: 2,
			Days: []domain.Day{
				{
					ID: "s2d1", StageID: "s2", DayNumberIn: 1, GlobalDayNumber: 3, RequiredPercent: 100,
					Tasks: []domain.Task{
						{ID: "s2d1t1", WeightPercent: 100, XPReward: 30, IsRequired: true},
					},
				},
			},
		},
	}
}

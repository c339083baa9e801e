package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"quizhost-service/internal/app"
	"quizhost-service/internal/config"
	"quizhost-service/internal/domain"
	"quizhost-service/internal/infra/memory"
	pgstore "quizhost-service/internal/infra/postgres"
	redisinfra "quizhost-service/internal/infra/redis"
	transport "quizhost-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz host",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)
	packTTL := config.TTLDuration(cfg.Quiz.PackTTL, 10*time.Minute)
	watchInterval := config.TTLDuration(cfg.Quiz.WatchInterval, time.Second)

	var (
		quizzes app.QuizRepository
		teams   app.TeamRepository
		packs   app.PackRepository
		experts app.ExpertRepository
	)
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		quizzes = pgstore.NewQuizStore(db)
		teams = pgstore.NewTeamStore(db)
		packs = pgstore.NewPackStore(db, pool)
		experts = pgstore.NewExpertStore(db)
	} else {
		quizzes = memory.NewQuizStore()
		teams = memory.NewTeamStore()
		packs = memory.NewPackStore()
		experts = memory.NewExpertStore()
	}

	broker := memory.NewBroker()
	var publisher app.Publisher = broker
	var sessions app.SessionRegistry = memory.NewSessionRegistry()
	if redisClient != nil {
		packs = redisinfra.NewPackCache(redisClient, packs, packTTL)
		sessions = redisinfra.NewSessionRegistry(redisClient, redisTTL)
		publisher = redisinfra.NewPublisher(redisClient)
		go redisinfra.Relay(ctx, redisClient, broker)
	} else {
		packs = memory.NewPackCache(packs, packTTL)
	}

	service := app.NewService(quizzes, teams, packs, experts, publisher, memory.NewTokenSource())
	service.SetSessionRegistry(sessions)

	watcher := app.NewWatcher(service, watchInterval)
	service.SetScheduler(watcher)
	watchCtx, stopWatcher := context.WithCancel(ctx)
	defer stopWatcher()
	go watcher.Run(watchCtx)

	if cfg.Postgres.URL == "" {
		seedDemo(ctx, service)
	}

	wsHandler := transport.NewWSHandler(service, broker)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/team", wsHandler.ServeTeamWS)
	mux.HandleFunc("/ws/producer", wsHandler.ServeProducerWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz host on :%s", finalPort)
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

// seedDemo sets up a pack and a published quiz so the server is playable out
// of the box in memory mode; the admin token is logged for the producer UI.
func seedDemo(ctx context.Context, service *app.Service) {
	pack, err := service.CreatePack(ctx, "demo-producer", "Demo pack")
	if err != nil {
		log.Printf("seed pack: %v", err)
		return
	}
	slips := []domain.Slip{
		domain.SingleSlip(domain.SolidQuestion("What is 2 + 2?", "4", 1)),
		domain.SingleSlip(domain.SolidQuestion("Capital of France?", "Paris", 2)),
	}
	for i, slip := range slips {
		if pack, err = service.SetSlip(ctx, pack.ID, "demo-producer", i, slip); err != nil {
			log.Printf("seed slip %d: %v", i, err)
			return
		}
	}
	quiz, err := service.CreateQuiz(ctx, "demo-producer", "Demo quiz")
	if err != nil {
		log.Printf("seed quiz: %v", err)
		return
	}
	quiz.Descriptor.PackID = pack.ID
	if quiz, err = service.SetQuizDescriptor(ctx, quiz.Descriptor.ID, quiz.Descriptor); err != nil {
		log.Printf("seed quiz pack link: %v", err)
		return
	}
	if quiz, err = service.SetQuizStatus(ctx, quiz.Descriptor.ID, domain.QuizPublished); err != nil {
		log.Printf("seed quiz publish: %v", err)
		return
	}
	log.Printf("demo quiz %s ready (admin token %s)", quiz.Descriptor.ID, quiz.Descriptor.AdminToken)
}

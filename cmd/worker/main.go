package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"journalflow.org/internal/cache"
	"journalflow.org/internal/config"
	"journalflow.org/internal/obs"
	"journalflow.org/internal/scheduler"
	"journalflow.org/internal/store"
	"journalflow.org/internal/workflow"
)

const concurrency = 4

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := obs.Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout).With().Str("process", "worker").Logger()
	obs.SetLogger(log)

	if cfg.Redis.Addr == "" {
		log.Fatal().Msg("worker requires JOURNALFLOW_REDIS_ADDR")
	}
	if cfg.Database.Driver == "memory" {
		log.Fatal().Msg("worker cannot share an in-memory store with the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database, false, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	svc, err := workflow.New(db,
		workflow.WithLogger(log),
		workflow.WithStoreTimeout(cfg.StoreTimeout),
		workflow.WithActivityPublisher(cache.NewActivityRelay(rdb, log)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("init workflow")
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	mux := asynq.NewServeMux()
	scheduler.NewHandlers(svc, cfg.Sweep.Batch, log).Register(mux)

	srv := scheduler.NewServer(redisOpt, concurrency, func(ctx context.Context, task *asynq.Task, err error) {
		log.Error().Err(err).Str("task", task.Type()).Msg("task failed")
	})
	periodic, err := scheduler.NewPeriodic(redisOpt, cfg.Sweep.Interval)
	if err != nil {
		log.Fatal().Err(err).Msg("init periodic sweep")
	}

	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("start worker")
	}
	if err := periodic.Start(); err != nil {
		log.Fatal().Err(err).Msg("start periodic sweep")
	}
	log.Info().Dur("sweep_interval", cfg.Sweep.Interval).Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	periodic.Shutdown()
	srv.Shutdown()
	log.Info().Msg("stopped")
}

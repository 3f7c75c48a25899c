package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/cache"
	"journalflow.org/internal/config"
	"journalflow.org/internal/httpapi"
	"journalflow.org/internal/objectstore"
	"journalflow.org/internal/obs"
	"journalflow.org/internal/scheduler"
	"journalflow.org/internal/store"
	"journalflow.org/internal/workflow"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := obs.Logger()
		boot.Fatal().Err(err).Msg("load config")
	}

	log := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	obs.SetLogger(log)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database, cfg.Database.AutoMigrate, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("init tokens")
	}

	feed := activity.NewFeed()
	opts := []workflow.ServiceOption{
		workflow.WithLogger(log),
		workflow.WithStoreTimeout(cfg.StoreTimeout),
		workflow.WithFeed(feed),
	}
	probe := httpapi.ReadyProbe{DB: db.DB, Checks: map[string]func(context.Context) error{}}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()

		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer queue.Close()

		relay := cache.NewActivityRelay(rdb, log)
		go func() {
			if err := relay.Forward(ctx, feed); err != nil {
				log.Error().Err(err).Msg("activity relay stopped")
			}
		}()

		opts = append(opts,
			workflow.WithUsersCache(cache.NewUsersCache(rdb, cfg.Redis.CacheTTL)),
			workflow.WithScheduler(scheduler.NewClient(queue)),
			workflow.WithActivityPublisher(relay),
		)
		probe.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("redis not configured: users cache and scheduled publish queue disabled")
	}

	if cfg.MinIO.Endpoint != "" {
		objects, err := objectstore.New(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("connect object storage")
		}
		opts = append(opts, workflow.WithObjectStorage(objects, cfg.MinIO.DownloadTTL))
	}

	svc, err := workflow.New(db, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("init workflow")
	}

	api := httpapi.New(probe, version, svc, tokens).
		WithRateLimit(cfg.Rate.PerSecond, cfg.Rate.Burst).
		WithCORSOrigins(cfg.CORSOrigins...)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCServer(probe))

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http listen")
		}
	}()
	go serveGRPC(grpcSrv, cfg.GRPCAddr, log)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
	log.Info().Msg("stopped")
}

func serveGRPC(s *grpc.Server, addr string, log zerolog.Logger) {
	if addr == "" {
		return
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("grpc listen")
	}
	log.Info().Str("addr", addr).Msg("grpc listening")
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		log.Error().Err(err).Msg("grpc serve")
	}
}

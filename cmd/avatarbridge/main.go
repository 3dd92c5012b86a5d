package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/cache"
	"github.com/mightymop/avatarbridge/internal/config"
	"github.com/mightymop/avatarbridge/internal/engine"
	"github.com/mightymop/avatarbridge/internal/event"
	"github.com/mightymop/avatarbridge/internal/handlers"
	"github.com/mightymop/avatarbridge/internal/jobs"
	"github.com/mightymop/avatarbridge/internal/log"
	"github.com/mightymop/avatarbridge/internal/media/resize"
	"github.com/mightymop/avatarbridge/internal/queue"
	"github.com/mightymop/avatarbridge/internal/server"
	"github.com/mightymop/avatarbridge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	dbPool, err := store.NewPostgresPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.ConnMaxLifetime)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	minioClient, err := store.NewMinioClient(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	pubsub := store.NewMinioPubSub(minioClient, cfg.Storage.Bucket)
	if err := pubsub.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	var snapshots cache.Cache
	var memory *cache.Memory
	if cfg.Cache.Backend == "redis" {
		snapshots = cache.NewRedis(redisClient, cfg.Cache.TTL, logger)
	} else {
		memory = cache.NewMemory(cfg.Cache.MaxBytes, cfg.Cache.TTL)
		snapshots = memory
	}

	presence := store.NewRedisPresence(redisClient)
	router := store.NewRedisRouter(redisClient, cfg.Streams.Outbound, event.OriginBridge, logger)

	flags := engine.NewFlags(engine.FlagState{
		ConversionEnabled:     cfg.Bridge.ConversionEnabled,
		PEPOnlyMode:           cfg.Bridge.PEPOnlyMode,
		ShrinkVCardImage:      cfg.Bridge.ShrinkVCardImage,
		LegacyProtocolEnabled: cfg.Bridge.LegacyProtocolEnabled,
	})

	bridge := engine.New(engine.Deps{
		PubSub:    pubsub,
		VCards:    store.NewPostgresVCard(dbPool),
		Presence:  presence,
		Router:    router,
		Cache:     snapshots,
		Resizer:   resize.Raster{},
		Flags:     flags,
		TargetDim: cfg.Bridge.TargetDim,
		Log:       logger,
	})

	processor := queue.NewProcessor(bridge, presence, router, cfg.Bridge.Domain, logger)
	consumer := queue.NewConsumer(
		redisClient,
		cfg.Streams.Inbound,
		cfg.Streams.Group,
		cfg.Streams.Consumer,
		cfg.Streams.ClaimInterval,
		logger,
		processor,
	)

	handlerSet := handlers.NewHandlerSet(logger, cfg, bridge, flags, dbPool, redisClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(memory, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Start(runCtx); err != nil && err != context.Canceled {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("admin http server failed")
		}
	}()

	<-runCtx.Done()
	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("bridge exited cleanly")
}

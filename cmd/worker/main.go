package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"prismfx/internal/cache"
	"prismfx/internal/config"
	"prismfx/internal/database"
	"prismfx/internal/log"
	"prismfx/internal/notify"
	"prismfx/internal/queue"
	"prismfx/internal/render"
	"prismfx/internal/repository"
	"prismfx/internal/storage"
	"prismfx/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	processor := worker.NewProcessor(
		repository.NewImageRepository(dbPool),
		repository.NewEffectRepository(dbPool),
		objectStore,
		render.NewEngine(cfg.Render),
		redisClient,
		notify.NewPublisher(redisClient, logger),
		cfg,
		logger,
	)

	consumer := queue.NewConsumer(
		redisClient,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure consumer group failed")
	}

	logger.Info().
		Str("stream", cfg.Queue.Stream).
		Str("group", cfg.Queue.Group).
		Str("consumer", cfg.Queue.Consumer).
		Msg("renderer worker starting")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}

	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}

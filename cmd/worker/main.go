package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidstreamlabs/vidstream-backend/internal/videos"
	"github.com/vidstreamlabs/vidstream-backend/internal/videos/consumer"
	"github.com/vidstreamlabs/vidstream-backend/pkg/config"
	"github.com/vidstreamlabs/vidstream-backend/pkg/db"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
	"github.com/vidstreamlabs/vidstream-backend/pkg/pubsub"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage/disk"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "processing-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "processing-worker"

	logg = logger.New(logger.Options{
		ServiceName: "processing-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	blobs, err := disk.New(cfg.Storage.Root)
	requireResource(ctx, logg, "blob store", err)

	meters := metrics.NewVideoMetrics(prometheus.NewRegistry())

	videoRepo := videos.NewRepository(dbClient.DB())
	coordinator, err := videos.NewCoordinator(videoRepo, videos.NewNotifier(), meters, logg)
	requireResource(ctx, logg, "status coordinator", err)

	processor, err := consumer.NewBlobProcessor(blobs, cfg.Media.ProcessDelay)
	requireResource(ctx, logg, "blob processor", err)

	handler, err := consumer.NewHandler(videoRepo, coordinator, processor, meters, logg)
	requireResource(ctx, logg, "job handler", err)

	processingConsumer, err := consumer.NewConsumer(handler, pubsubClient.ProcessingSubscription(), logg)
	requireResource(ctx, logg, "processing consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "processing worker ready")

	if err := processingConsumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "processing worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

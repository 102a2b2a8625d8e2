package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/vidstreamlabs/vidstream-backend/api/routes"
	"github.com/vidstreamlabs/vidstream-backend/internal/auth"
	"github.com/vidstreamlabs/vidstream-backend/internal/users"
	"github.com/vidstreamlabs/vidstream-backend/internal/videos"
	"github.com/vidstreamlabs/vidstream-backend/internal/videos/consumer"
	"github.com/vidstreamlabs/vidstream-backend/pkg/auth/session"
	"github.com/vidstreamlabs/vidstream-backend/pkg/config"
	"github.com/vidstreamlabs/vidstream-backend/pkg/db"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
	"github.com/vidstreamlabs/vidstream-backend/pkg/migrate"
	"github.com/vidstreamlabs/vidstream-backend/pkg/pubsub"
	"github.com/vidstreamlabs/vidstream-backend/pkg/redis"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage/disk"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer closeQuietly(logg, "redis", redisClient.Close)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(logg, "session manager", err)

	blobs, err := disk.New(cfg.Storage.Root)
	requireResource(logg, "blob store", err)

	registry := prometheus.NewRegistry()
	meters := metrics.NewVideoMetrics(registry)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	videoRepo := videos.NewRepository(dbClient.DB())
	notifier := videos.NewNotifier()
	coordinator, err := videos.NewCoordinator(videoRepo, notifier, meters, logg)
	requireResource(logg, "status coordinator", err)

	var dispatcher videos.Dispatcher
	var closers []func() error
	if cfg.FeatureFlags.InprocWorker {
		// Single-binary mode: jobs flow through a channel to an in-process
		// worker pool instead of pub/sub.
		chanDispatcher := videos.NewChanDispatcher(cfg.Media.DispatchBuffer)
		dispatcher = chanDispatcher
		closers = append(closers, func() error {
			chanDispatcher.Close()
			return nil
		})

		processor, err := consumer.NewBlobProcessor(blobs, cfg.Media.ProcessDelay)
		requireResource(logg, "blob processor", err)

		handler, err := consumer.NewHandler(videoRepo, coordinator, processor, meters, logg)
		requireResource(logg, "job handler", err)

		runner, err := consumer.NewRunner(handler, chanDispatcher.Jobs(), cfg.Media.ProcessWorkers, logg)
		requireResource(logg, "worker runner", err)

		go runner.Run(runCtx)
	} else {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		requireResource(logg, "pubsub", err)
		closers = append(closers, pubsubClient.Close)

		psDispatcher, err := videos.NewPubSubDispatcher(pubsubClient.ProcessingPublisher())
		requireResource(logg, "job dispatcher", err)
		dispatcher = psDispatcher
	}

	videoService, err := videos.NewService(videoRepo, blobs, dispatcher, meters, logg, cfg.Media.MaxUploadBytes())
	requireResource(logg, "video service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireResource(logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	requireResource(logg, "register service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"inproc_worker": cfg.FeatureFlags.InprocWorker,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			registerService,
			videoService,
			meters,
			registry,
		),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		for _, closeFn := range closers {
			err = multierr.Append(err, closeFn())
		}
		if err != nil {
			logg.Error(ctx, "shutdown did not complete cleanly", err)
			os.Exit(1)
		}
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "resource not working: "+resource, err)
	os.Exit(1)
}

func closeQuietly(logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+resource, err)
	}
}

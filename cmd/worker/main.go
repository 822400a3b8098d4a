package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/barq-desk/barq/internal/app"
	"github.com/barq-desk/barq/internal/auth"
	jobmetrics "github.com/barq-desk/barq/internal/jobs"
	"github.com/barq-desk/barq/internal/notifications"
	"github.com/barq-desk/barq/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	metrics := jobmetrics.NewMetrics(nil)
	notifyJob := jobs.NewDecisionNotifyJob(notifications.NewService(stores.Notifications, logger), logger, metrics)
	purgeJob := jobs.NewSessionPurgeJob(auth.NewService(stores.Auth), logger, metrics)

	purgeTask, err := jobs.NewPurgeSessionsTask("cron")
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRequestDecided, Handler: notifyJob.Handle},
			{Type: jobs.TaskPurgeSessions, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.PurgeSessionsSchedule, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })

	if cfg.WorkerMetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

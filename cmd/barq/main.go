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
	"golang.org/x/sync/errgroup"

	"github.com/barq-desk/barq/internal/app"
	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/notifications"
	"github.com/barq-desk/barq/internal/observability"
	"github.com/barq-desk/barq/internal/platform/cache"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/requests"
	"github.com/barq-desk/barq/internal/roles"
	"github.com/barq-desk/barq/internal/shared"
	"github.com/barq-desk/barq/internal/users"
	"github.com/barq-desk/barq/internal/view"
	"github.com/barq-desk/barq/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("barq exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, "", 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacService := rbac.NewService(stores.RBAC, logger)
	report, err := app.SyncPolicy(ctx, cfg, rbacService)
	if err != nil {
		return err
	}
	logger.Info("rbac ready", slog.String("mode", string(cfg.SyncMode())), slog.Int("roles", report.Roles))

	metrics := observability.NewMetrics()
	gate := rbac.NewGate(rbacService, metrics)
	gate.SetLookupTimeout(cfg.AppRequestTimeout)
	rbacMiddleware := rbac.Middleware{Gate: gate, Logger: logger}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	requestService := requests.NewService(requests.ServiceDeps{
		Repo:     stores.Requests,
		Gate:     gate,
		Locker:   shared.NewLocker(redisClient, cfg.DecideLockTTL),
		Notifier: jobsClient,
		Metrics:  metrics,
		Logger:   logger,
	})
	authService := auth.NewService(stores.Auth)
	usersService := users.NewService(stores.Users, rbacService, logger)
	notificationService := notifications.NewService(stores.Notifications, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          auth.NewHandler(logger, authService, gate, sessionManager, csrfManager),
		RequestsHandler:      requests.NewHandler(logger, requestService, shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)),
		DashboardHandler:     view.NewHandler(logger, gate),
		RolesHandler:         roles.NewHandler(logger, roles.NewService(rbacService), rbacMiddleware),
		UsersHandler:         users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler:   rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		NotificationsHandler: notifications.NewHandler(logger, notificationService, rbacMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
		Ready: func(r *http.Request) error {
			if err := stores.Ping(r.Context()); err != nil {
				return err
			}
			return redisClient.Ping(r.Context()).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", stores.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atrium-platform/atrium-admin/internal/app"
	"github.com/atrium-platform/atrium-admin/internal/audit"
	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/navigation"
	"github.com/atrium-platform/atrium-admin/internal/observability"
	"github.com/atrium-platform/atrium-admin/internal/platform/cache"
	"github.com/atrium-platform/atrium-admin/internal/platform/db"
	"github.com/atrium-platform/atrium-admin/internal/rbac"
	"github.com/atrium-platform/atrium-admin/internal/roles"
	"github.com/atrium-platform/atrium-admin/internal/shared"
	"github.com/atrium-platform/atrium-admin/internal/users"
	"github.com/atrium-platform/atrium-admin/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPoolSize)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	permissionCache := authz.NewCache(redisClient, cfg.PermissionCacheTTL)
	identityStore := rbac.NewStore(dbpool)
	calculator := authz.NewCalculator(identityStore, permissionCache).Instrument(metrics, logger)

	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	auditSink := jobs.NewAsyncAuditSink(jobClient, logger)

	rbacMiddleware := rbac.Middleware{Calculator: calculator, Audit: auditSink, Logger: logger, Metrics: metrics}

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, approvalRecorder, auditSink, permissionCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditSink, permissionCache, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	registry := navigation.NewHolder(navigation.DefaultRegistry())
	navigationHandler := navigation.NewHandler(logger, calculator, registry)

	rbacHandler := rbac.NewHandler(logger, calculator)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              dbpool,
		RolesHandler:      rolesHandler,
		UsersHandler:      usersHandler,
		AuditHandler:      auditHandler,
		NavigationHandler: navigationHandler,
		RBACHandler:       rbacHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

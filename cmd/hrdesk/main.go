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

	"github.com/hrdesk/hrdesk/internal/app"
	"github.com/hrdesk/hrdesk/internal/audit"
	audithttp "github.com/hrdesk/hrdesk/internal/audit/http"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/leave"
	"github.com/hrdesk/hrdesk/internal/observability"
	"github.com/hrdesk/hrdesk/internal/platform/cache"
	"github.com/hrdesk/hrdesk/internal/platform/db"
	"github.com/hrdesk/hrdesk/internal/platform/docstore"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/reports"
	"github.com/hrdesk/hrdesk/internal/shared"
	"github.com/hrdesk/hrdesk/internal/users"
	"github.com/hrdesk/hrdesk/jobs"
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

	mongoClient, err := docstore.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("connect mongo", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect", slog.Any("error", err))
		}
	}()
	mongoDB := mongoClient.Database(cfg.MongoDatabase)
	if err := docstore.EnsureIndexes(ctx, mongoDB); err != nil {
		logger.Error("ensure indexes", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	applied, err := db.Migrate(ctx, dbpool)
	if err != nil {
		logger.Error("migrate postgres", slog.Any("error", err))
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", slog.Any("versions", applied))
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := shared.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("init tokens", slog.Any("error", err))
		os.Exit(1)
	}

	var tableOpts []rbac.RouteTableOption
	if cfg.RBACDefaultDeny {
		tableOpts = append(tableOpts, rbac.WithDefaultDeny())
	}
	registry := rbac.DefaultRegistry()
	routeTable := rbac.DefaultRouteTable(tableOpts...)
	rbacMiddleware := rbac.Middleware{Registry: registry, Logger: logger}
	responder := httpx.Responder{Expose: !cfg.IsProduction(), Logger: logger}
	metrics := observability.NewMetrics()

	sessions := shared.NewSessionStore(redisClient, cfg.SessionTokenTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts, metrics.Jobs())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	userRepo := users.NewMongoRepository(mongoDB)
	userService := users.NewService(userRepo, sessions, auditLogger, logger)

	authService := auth.NewService(userService, sessions, tokens, auth.Options{
		AccessTTL:  cfg.AccessTokenTTL,
		SessionTTL: cfg.SessionTokenTTL,
	}, auditLogger, metrics, logger)

	leaveRepo := leave.NewMongoRepository(mongoDB)
	leaveService := leave.NewService(leaveRepo, registry, leave.Dependencies{
		Approvals:   approvalRecorder,
		Idempotency: idempotencyStore,
		Audit:       auditLogger,
		Notifier:    jobs.NewLeaveNotifier(jobClient, userService, logger),
		Logger:      logger,
	})

	reportService := reports.NewService(leaveRepo, userRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Gate:               rbac.Gate{Table: routeTable, Tokens: tokens, Logger: logger, Observer: metrics},
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, responder, shared.CookieOptions{Secure: cfg.IsProduction()}),
		UsersHandler:       users.NewHandler(logger, userService, rbacMiddleware, responder),
		LeaveHandler:       leave.NewHandler(logger, leaveService, rbacMiddleware, responder),
		ReportsHandler:     reports.NewHandler(logger, reportService, rbacMiddleware, responder),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, registry, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewPostgresRepository(dbpool)), auditLogger, rbacMiddleware, responder),
		HealthChecks: map[string]app.HealthCheck{
			"mongo":    func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return cache.Ping(ctx, redisClient) },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()
	go func() {
		logger.Info("starting metrics server", slog.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", slog.Any("error", err))
	}
}

func metricsMux(metrics *observability.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

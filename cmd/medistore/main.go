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

	"github.com/medistore/medistore/internal/app"
	"github.com/medistore/medistore/internal/audit"
	"github.com/medistore/medistore/internal/auth"
	jobmetrics "github.com/medistore/medistore/internal/jobs"
	"github.com/medistore/medistore/internal/observability"
	"github.com/medistore/medistore/internal/platform/cache"
	"github.com/medistore/medistore/internal/platform/db"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/rbac"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/seed"
	"github.com/medistore/medistore/internal/shared"
	"github.com/medistore/medistore/internal/users"
	"github.com/medistore/medistore/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	applied, err := db.Migrate(ctx, dbpool)
	if err != nil {
		logger.Error("migrate schema", slog.Any("error", err))
		os.Exit(1)
	}
	if applied > 0 {
		logger.Info("schema migrated", slog.Int("applied", applied))
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

	privilegeRepo := privileges.NewRepository(dbpool)
	roleRepo := roles.NewRepository(dbpool)
	userRepo := users.NewRepository(dbpool)

	privilegeService := privileges.NewService(privilegeRepo, logger)
	roleService := roles.NewService(roleRepo, logger)
	userService := users.NewService(userRepo, logger)

	report, err := seed.NewSeeder(privilegeService, roleService, logger).Run(ctx)
	if err != nil {
		logger.Error("seed rbac catalog", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rbac ready",
		slog.Int("privileges", report.PrivilegesTotal),
		slog.Int("roles", report.RolesSynced),
	)

	metrics := observability.NewMetrics()
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var denialSink rbac.DenialSink
	if cfg.AuditAsync {
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		denialSink = jobsClient
	} else {
		denialSink = jobs.NewDenialAuditJob(shared.NewAuditLogger(dbpool), logger, jobmetrics.NewMetrics(metrics.Registerer()))
	}

	resolver := rbac.NewResolver(userRepo, roleRepo, logger)
	enforcer := rbac.NewEnforcer(rbac.EnforcerConfig{
		Evaluator: rbac.NewEvaluator(resolver),
		Logger:    logger,
		Metrics:   metrics,
		Audit:     denialSink,
		AdminRole: cfg.AdminRoleCode,
	})

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenSecret, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), tokenStore, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Verifier:          authService,
		Enforcer:          enforcer,
		AuthHandler:       auth.NewHandler(logger, authService, cfg.LoginPerMinute),
		MeHandler:         rbac.NewHandler(logger, resolver, enforcer),
		PrivilegesHandler: privileges.NewHandler(logger, privilegeService, enforcer),
		RolesHandler:      roles.NewHandler(logger, roleService, enforcer),
		UsersHandler:      users.NewHandler(logger, userService, enforcer),
		AuditHandler:      audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), enforcer),
		JobHandler:        jobs.NewHandler(inspector, logger),
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

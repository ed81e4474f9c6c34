package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/alert"
	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/audit"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/queue"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	issueRepo := repository.NewIssueRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	stateRepo := repository.NewSlaStateRepository(pool)
	jobRepo := repository.NewEscalationJobRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	deadLetterRepo := repository.NewDeadLetterRepository(pool)

	// Manual sweeps run in-process; compare-and-set on SlaState keeps them
	// safe to run alongside the worker's scheduled sweeps.
	q := queue.NewRedisQueue(rdb.Client, cfg.Sla.VisibilityTimeout)
	auditSink := audit.NewSink(auditRepo, logger)
	alerts := alert.NewInMemoryBus()
	alerts.Subscribe(alert.KindSweepFailure, alert.LogHandler(logger))

	resolver := sla.NewPolicyResolver(policyRepo, domain.PolicyTarget{
		Response:   cfg.Sla.DefaultResponse,
		Resolution: cfg.Sla.DefaultResolution,
	})
	detector := sla.NewDetector(issueRepo, stateRepo, jobRepo, resolver, q, auditSink, logger, sla.DetectorConfig{
		WarningFraction: cfg.Sla.WarningFraction,
		EvalWorkers:     cfg.Sla.EvalWorkers,
		JobMaxAttempts:  cfg.Sla.MaxAttempts,
	})
	scheduler := sla.NewScheduler(detector, alerts, logger, cfg.Sla.SweepInterval)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth),
		Sla:            handlers.NewSlaHandler(issueRepo, stateRepo),
		Admin:          handlers.NewAdminHandler(scheduler, deadLetterRepo, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

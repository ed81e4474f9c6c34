package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/alert"
	"github.com/spec-kit/sla-engine/internal/audit"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/dispatch"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/notify"
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
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

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

	q := queue.NewRedisQueue(rdb.Client, cfg.Sla.VisibilityTimeout)
	auditSink := audit.NewSink(auditRepo, logger)

	alerts := alert.NewInMemoryBus()
	alerts.Subscribe(alert.KindSweepFailure, alert.LogHandler(logger))
	alerts.Subscribe(alert.KindDeadLetter, alert.LogHandler(logger))
	if cfg.Notify.AlertWebhookURL != "" {
		handler := alert.WebhookHandler(cfg.Notify.AlertWebhookURL, logger)
		alerts.Subscribe(alert.KindSweepFailure, handler)
		alerts.Subscribe(alert.KindDeadLetter, handler)
	}

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

	transport := notify.FromConfig(cfg.Notify, cfg.Sla.TransportTimeout)
	dispatcher := dispatch.NewDispatcher(q, jobRepo, stateRepo, issueRepo, deadLetterRepo, transport, auditSink, alerts, logger, dispatch.Config{
		Workers:          cfg.Sla.DispatchWorkers,
		PollInterval:     cfg.Sla.DispatchPollInterval,
		BackoffBase:      cfg.Sla.BackoffBase,
		BackoffMax:       cfg.Sla.BackoffMax,
		MaxAttempts:      cfg.Sla.MaxAttempts,
		TransportTimeout: cfg.Sla.TransportTimeout,
	})

	go func() {
		if err := http.ListenAndServe(cfg.App.MetricsAddr, observability.MetricsHandler()); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	logger.Info("sla worker started",
		zap.Duration("sweep_interval", cfg.Sla.SweepInterval),
		zap.Int("dispatch_workers", cfg.Sla.DispatchWorkers))
	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler stopped", zap.Error(err))
	}
}

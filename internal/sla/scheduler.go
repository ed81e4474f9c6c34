package sla

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/alert"
	"github.com/spec-kit/sla-engine/internal/observability"
)

// Scheduler fires evaluation sweeps on a fixed interval. A failed sweep is
// logged and raised as an operator alert; the next tick retries it, so queue
// or store hiccups degrade to delayed escalation rather than lost state.
type Scheduler struct {
	detector *Detector
	alerts   alert.Bus
	logger   *zap.Logger
	interval time.Duration
}

// NewScheduler wires a scheduler.
func NewScheduler(detector *Detector, alerts alert.Bus, logger *zap.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{detector: detector, alerts: alerts, logger: logger, interval: interval}
}

// Run blocks, sweeping every interval until the context is cancelled. The
// first sweep runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// RunNow triggers a single sweep outside the schedule. Used by the
// permission-gated administrative endpoint.
func (s *Scheduler) RunNow(ctx context.Context) (SweepReport, error) {
	return s.detector.Evaluate(ctx, time.Now().UTC())
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	report, err := s.detector.Evaluate(ctx, start.UTC())
	observability.SweepDuration.Observe(time.Since(start).Seconds())
	observability.SweepsTotal.Inc()

	if err != nil {
		observability.SweepFailures.Inc()
		s.logger.Error("sweep failed", zap.Error(err),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("enqueued", report.Enqueued))
		s.alerts.Publish(ctx, alert.Alert{
			Kind:    alert.KindSweepFailure,
			Message: err.Error(),
		})
		return
	}

	s.logger.Info("sweep complete",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("transitions", report.Transitions),
		zap.Int("enqueued", report.Enqueued),
		zap.Int("archived", report.Archived),
		zap.Int("superseded", report.Superseded),
		zap.Duration("took", time.Since(start)))
}

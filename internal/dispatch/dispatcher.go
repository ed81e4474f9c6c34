package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/alert"
	"github.com/spec-kit/sla-engine/internal/audit"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/notify"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/queue"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// Result classifies how one job was handled.
type Result string

const (
	ResultDelivered    Result = "delivered"
	ResultSuperseded   Result = "superseded"
	ResultCancelled    Result = "cancelled"
	ResultRetried      Result = "retried"
	ResultDeadLettered Result = "dead_lettered"
)

// Config carries the dispatcher tunables.
type Config struct {
	Workers          int
	PollInterval     time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	MaxAttempts      int
	TransportTimeout time.Duration
}

// Dispatcher consumes escalation jobs from the queue and performs the side
// effect. It is safe to run many dispatchers: job handling is idempotent
// through the SlaState version check, and the queue leases each job to one
// consumer at a time.
type Dispatcher struct {
	queue       queue.Queue
	jobs        repository.EscalationJobRepository
	states      repository.SlaStateRepository
	issues      repository.IssueRepository
	deadLetters repository.DeadLetterRepository
	transport   notify.Transport
	audits      *audit.Sink
	alerts      alert.Bus
	logger      *zap.Logger
	cfg         Config
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(
	q queue.Queue,
	jobs repository.EscalationJobRepository,
	states repository.SlaStateRepository,
	issues repository.IssueRepository,
	deadLetters repository.DeadLetterRepository,
	transport notify.Transport,
	audits *audit.Sink,
	alerts alert.Bus,
	logger *zap.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.TransportTimeout <= 0 {
		cfg.TransportTimeout = 10 * time.Second
	}
	return &Dispatcher{
		queue:       q,
		jobs:        jobs,
		states:      states,
		issues:      issues,
		deadLetters: deadLetters,
		transport:   transport,
		audits:      audits,
		alerts:      alerts,
		logger:      logger,
		cfg:         cfg,
	}
}

// Run blocks until the context is cancelled, driving one maintenance loop and
// the configured number of consumer loops.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.maintain(ctx)
	}()

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.consume(ctx, worker)
		}(i)
	}

	wg.Wait()
	return ctx.Err()
}

// maintain promotes retry-scheduled jobs and reclaims expired leases.
func (d *Dispatcher) maintain(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		if _, err := d.queue.PromoteScheduled(ctx, now, 100); err != nil {
			d.logger.Warn("promote scheduled failed", zap.Error(err))
		}
		reclaimed, err := d.queue.RequeueExpired(ctx, now, 100)
		if err != nil {
			d.logger.Warn("requeue expired failed", zap.Error(err))
		}
		for _, id := range reclaimed {
			d.logger.Warn("reclaimed expired lease", zap.String("job_id", id))
		}
		if depth, err := d.queue.Depth(ctx); err == nil {
			observability.QueueDepthGauge.Set(float64(depth))
		}
	}
}

func (d *Dispatcher) consume(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.logger.Warn("dequeue failed", zap.Int("worker", worker), zap.Error(err))
			d.sleep(ctx, d.cfg.PollInterval)
			continue
		}
		if jobID == "" {
			d.sleep(ctx, d.cfg.PollInterval)
			continue
		}

		observability.InFlightGauge.Inc()
		result, err := d.Handle(ctx, jobID)
		observability.InFlightGauge.Dec()
		if err != nil {
			d.logger.Error("job handling failed",
				zap.String("job_id", jobID),
				zap.String("result", string(result)),
				zap.Error(err))
		}
	}
}

// Handle processes a single leased job to completion: delivered, retried,
// cancelled, superseded, or dead-lettered.
func (d *Dispatcher) Handle(ctx context.Context, jobID string) (Result, error) {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err == repository.ErrJobNotFound {
		// Queue entry without a durable row; nothing to execute.
		d.logger.Warn("dropping unknown job", zap.String("job_id", jobID))
		return ResultCancelled, d.queue.Ack(ctx, jobID)
	}
	if err != nil {
		_ = d.queue.Nack(ctx, jobID, d.cfg.BackoffBase)
		return ResultRetried, fmt.Errorf("load job %s: %w", jobID, err)
	}

	switch job.Status {
	case domain.JobStatusDelivered, domain.JobStatusCancelled, domain.JobStatusDeadLettered:
		// Duplicate delivery of an already settled job.
		return ResultCancelled, d.queue.Ack(ctx, jobID)
	}

	state, err := d.states.Get(ctx, job.IssueID)
	if err != nil {
		_ = d.queue.Nack(ctx, jobID, d.cfg.BackoffBase)
		return ResultRetried, fmt.Errorf("load sla state for issue %s: %w", job.IssueID, err)
	}
	if state == nil || state.Version != job.TargetVersion || state.Status == domain.SlaStatusArchived {
		// The issue moved on since this job was queued. Acking a stale job
		// without side effect is the core idempotency guard.
		observability.JobsSuperseded.Inc()
		if err := d.jobs.MarkCancelled(ctx, job.ID); err != nil {
			d.logger.Warn("failed to mark superseded job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return ResultSuperseded, d.queue.Ack(ctx, jobID)
	}

	issue, err := d.issues.GetByID(ctx, job.IssueID)
	if err != nil {
		_ = d.queue.Nack(ctx, jobID, d.cfg.BackoffBase)
		return ResultRetried, fmt.Errorf("load issue %s: %w", job.IssueID, err)
	}
	if !issue.Status.IsActive() {
		if err := d.jobs.MarkCancelled(ctx, job.ID); err != nil {
			d.logger.Warn("failed to mark cancelled job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return ResultCancelled, d.queue.Ack(ctx, jobID)
	}

	if err := d.jobs.MarkInFlight(ctx, job.ID); err != nil {
		d.logger.Warn("failed to mark job in flight", zap.String("job_id", job.ID), zap.Error(err))
	}

	msg, err := notify.Render(job, issue)
	if err != nil {
		// Rendering cannot succeed on retry; route straight to dead letter.
		return d.deadLetter(ctx, job, fmt.Sprintf("render: %v", err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.TransportTimeout)
	err = d.transport.Send(sendCtx, msg)
	cancel()

	if err == nil {
		return d.deliver(ctx, job, state)
	}

	attempts := job.Attempts + 1
	if attempts >= maxAttempts(job.MaxAttempts, d.cfg.MaxAttempts) {
		return d.deadLetter(ctx, job, err.Error())
	}

	observability.JobsRetried.Inc()
	if uerr := d.jobs.UpdateAttempts(ctx, job.ID, attempts, err.Error()); uerr != nil {
		d.logger.Warn("failed to record attempt", zap.String("job_id", job.ID), zap.Error(uerr))
	}
	delay := Backoff(d.cfg.BackoffBase, d.cfg.BackoffMax, attempts)
	if nerr := d.queue.Nack(ctx, job.ID, delay); nerr != nil {
		return ResultRetried, fmt.Errorf("nack job %s: %w", job.ID, nerr)
	}
	d.logger.Info("delivery failed, retry scheduled",
		zap.String("job_id", job.ID),
		zap.Int("attempts", attempts),
		zap.Duration("delay", delay),
		zap.Error(err))
	return ResultRetried, nil
}

func (d *Dispatcher) deliver(ctx context.Context, job *domain.EscalationJob, state *domain.SlaState) (Result, error) {
	if err := d.jobs.MarkDelivered(ctx, job.ID); err != nil {
		d.logger.Warn("failed to mark job delivered", zap.String("job_id", job.ID), zap.Error(err))
	}
	d.audits.Record(ctx, &domain.AuditRecord{
		OrgID:   job.OrgID,
		Actor:   domain.SystemActor,
		Area:    domain.AuditAreaSla,
		Action:  "escalation_notified:" + string(job.Kind),
		IssueID: job.IssueID,
		After:   string(state.Status),
	})
	observability.JobsDelivered.Inc()
	return ResultDelivered, d.queue.Ack(ctx, job.ID)
}

// deadLetter retires a job after exhausted retries or a permanent failure.
// The issue's SlaState is left untouched: the breach stands even though the
// notification could not be delivered.
func (d *Dispatcher) deadLetter(ctx context.Context, job *domain.EscalationJob, reason string) (Result, error) {
	if err := d.jobs.MarkDeadLettered(ctx, job.ID, reason); err != nil {
		d.logger.Warn("failed to mark job dead-lettered", zap.String("job_id", job.ID), zap.Error(err))
	}
	if err := d.deadLetters.Insert(ctx, &domain.DeadLetterRecord{
		JobID:    job.ID,
		IssueID:  job.IssueID,
		OrgID:    job.OrgID,
		Kind:     job.Kind,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}); err != nil {
		d.logger.Warn("failed to record dead letter", zap.String("job_id", job.ID), zap.Error(err))
	}
	d.alerts.Publish(ctx, alert.Alert{
		Kind:    alert.KindDeadLetter,
		Message: reason,
		IssueID: job.IssueID,
		JobID:   job.ID,
	})
	observability.JobsDeadLettered.Inc()
	return ResultDeadLettered, d.queue.DeadLetter(ctx, job.ID)
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Backoff returns the retry delay for the given attempt count: exponential
// with factor 2, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

func maxAttempts(jobMax, cfgMax int) int {
	if jobMax > 0 && jobMax < cfgMax {
		return jobMax
	}
	return cfgMax
}

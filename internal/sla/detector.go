package sla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/audit"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/queue"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// SweepReport summarizes one evaluation sweep.
type SweepReport struct {
	SweepTime   time.Time
	Evaluated   int
	Transitions int
	Enqueued    int
	Archived    int
	Superseded  int
}

// DetectorConfig carries the detector tunables.
type DetectorConfig struct {
	WarningFraction float64
	EvalWorkers     int
	JobMaxAttempts  int
	// OrphanGrace bounds how long a pending job may sit without a queue
	// entry before a sweep re-enqueues it.
	OrphanGrace time.Duration
}

// Detector runs evaluation sweeps: it enumerates issues, classifies each one
// against its policy deadlines, and turns edge-triggered status transitions
// into escalation jobs. The SlaState compare-and-set happens before the job
// is enqueued, which is what makes redelivered or duplicate jobs safe for the
// dispatcher to drop.
type Detector struct {
	issues   repository.IssueRepository
	states   repository.SlaStateRepository
	jobs     repository.EscalationJobRepository
	resolver *PolicyResolver
	queue    queue.Queue
	audits   *audit.Sink
	logger   *zap.Logger
	cfg      DetectorConfig
}

// NewDetector wires a detector.
func NewDetector(
	issues repository.IssueRepository,
	states repository.SlaStateRepository,
	jobs repository.EscalationJobRepository,
	resolver *PolicyResolver,
	q queue.Queue,
	audits *audit.Sink,
	logger *zap.Logger,
	cfg DetectorConfig,
) *Detector {
	if cfg.EvalWorkers <= 0 {
		cfg.EvalWorkers = 8
	}
	if cfg.JobMaxAttempts <= 0 {
		cfg.JobMaxAttempts = 5
	}
	if cfg.WarningFraction <= 0 || cfg.WarningFraction >= 1 {
		cfg.WarningFraction = 0.2
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = 10 * time.Minute
	}
	return &Detector{
		issues:   issues,
		states:   states,
		jobs:     jobs,
		resolver: resolver,
		queue:    q,
		audits:   audits,
		logger:   logger,
		cfg:      cfg,
	}
}

// Evaluate runs one sweep at sweepTime. Issues are independent, so
// evaluation fans out across a bounded worker pool. A returned error means
// the sweep was degraded (typically the queue was unreachable); no transition
// is lost permanently because job rows are durable and the next sweep
// re-enqueues orphaned ones.
func (d *Detector) Evaluate(ctx context.Context, sweepTime time.Time) (SweepReport, error) {
	report := SweepReport{SweepTime: sweepTime}

	d.resolver.ResetCache()
	d.recoverOrphans(ctx, sweepTime)

	issues, err := d.issues.ListForSweep(ctx)
	if err != nil {
		return report, fmt.Errorf("list issues for sweep: %w", err)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
		sem  = make(chan struct{}, d.cfg.EvalWorkers)
	)

	for i := range issues {
		issue := issues[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := d.evaluateIssue(ctx, &issue, sweepTime)
			mu.Lock()
			defer mu.Unlock()
			report.Evaluated++
			report.Transitions += outcome.transitions
			report.Enqueued += outcome.enqueued
			report.Archived += outcome.archived
			report.Superseded += outcome.superseded
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	observability.SweepEvaluated.Add(float64(report.Evaluated))
	observability.SweepTransitions.Add(float64(report.Transitions))

	if len(errs) > 0 {
		return report, fmt.Errorf("sweep degraded (%d issue errors): %w", len(errs), errors.Join(errs...))
	}
	return report, nil
}

type issueOutcome struct {
	transitions int
	enqueued    int
	archived    int
	superseded  int
}

func (d *Detector) evaluateIssue(ctx context.Context, issue *domain.Issue, sweepTime time.Time) (issueOutcome, error) {
	if !issue.Status.IsActive() {
		return d.archiveIssue(ctx, issue, sweepTime)
	}

	target, err := d.resolver.Resolve(ctx, issue.OrgID, issue.Priority)
	if err != nil {
		return issueOutcome{}, err
	}

	classification := Classify(issue, target, d.cfg.WarningFraction, sweepTime)

	state, err := d.states.Get(ctx, issue.ID)
	if err != nil {
		return issueOutcome{}, fmt.Errorf("load sla state for issue %s: %w", issue.ID, err)
	}

	var expectedVersion int64
	prevStatus := domain.SlaStatusOnTrack
	if state != nil {
		expectedVersion = state.Version
		prevStatus = state.Status
	}

	if state != nil && state.Status == classification.Status {
		return issueOutcome{}, nil
	}
	if state == nil && classification.Status == domain.SlaStatusOnTrack {
		// First sighting, already on track. Record the state so later
		// transitions are edge-triggered, but raise nothing.
		ok, err := d.states.CompareAndSet(ctx, issue.ID, 0, domain.SlaState{
			IssueID:     issue.ID,
			Status:      domain.SlaStatusOnTrack,
			Version:     1,
			EvaluatedAt: sweepTime,
		})
		if err != nil {
			return issueOutcome{}, fmt.Errorf("init sla state for issue %s: %w", issue.ID, err)
		}
		if ok {
			d.annotate(ctx, issue.ID, domain.SlaStatusOnTrack, sweepTime)
		}
		return issueOutcome{}, nil
	}

	next := domain.SlaState{
		IssueID:     issue.ID,
		Status:      classification.Status,
		Version:     expectedVersion + 1,
		EvaluatedAt: sweepTime,
	}
	ok, err := d.states.CompareAndSet(ctx, issue.ID, expectedVersion, next)
	if err != nil {
		return issueOutcome{}, fmt.Errorf("transition sla state for issue %s: %w", issue.ID, err)
	}
	if !ok {
		// A concurrent sweep or dispatcher won the race; whoever bumped the
		// version owns the transition now.
		return issueOutcome{superseded: 1}, nil
	}

	d.annotate(ctx, issue.ID, classification.Status, sweepTime)
	outcome := issueOutcome{transitions: 1}
	d.logger.Info("sla transition",
		zap.String("issue_id", issue.ID),
		zap.String("from", string(prevStatus)),
		zap.String("to", string(classification.Status)),
		zap.Int64("version", next.Version))

	if classification.Kind == "" {
		return outcome, nil
	}

	job := &domain.EscalationJob{
		ID:            uuid.New().String(),
		IssueID:       issue.ID,
		OrgID:         issue.OrgID,
		Kind:          classification.Kind,
		TargetVersion: next.Version,
		MaxAttempts:   d.cfg.JobMaxAttempts,
	}
	created, err := d.jobs.Create(ctx, job)
	if err != nil {
		return outcome, fmt.Errorf("create escalation job for issue %s: %w", issue.ID, err)
	}
	if !created {
		// A live job of this kind is still outstanding for the issue.
		return outcome, nil
	}

	if err := d.queue.Enqueue(ctx, job.ID); err != nil {
		// Fail closed: the durable row stays PENDING and orphan recovery
		// re-enqueues it on the next sweep.
		return outcome, fmt.Errorf("enqueue escalation job %s: %w", job.ID, err)
	}
	observability.JobsEnqueued.Inc()
	outcome.enqueued = 1
	return outcome, nil
}

// archiveIssue retires SLA tracking for a resolved or closed issue: the state
// moves to its terminal status and every live job is cancelled so nothing
// fires after the fact. In-flight jobs that already left the queue no-op in
// the dispatcher via the version check.
func (d *Detector) archiveIssue(ctx context.Context, issue *domain.Issue, sweepTime time.Time) (issueOutcome, error) {
	state, err := d.states.Get(ctx, issue.ID)
	if err != nil {
		return issueOutcome{}, fmt.Errorf("load sla state for issue %s: %w", issue.ID, err)
	}
	if state == nil || state.Status == domain.SlaStatusArchived {
		return issueOutcome{}, nil
	}

	ok, err := d.states.CompareAndSet(ctx, issue.ID, state.Version, domain.SlaState{
		IssueID:     issue.ID,
		Status:      domain.SlaStatusArchived,
		Version:     state.Version + 1,
		EvaluatedAt: sweepTime,
	})
	if err != nil {
		return issueOutcome{}, fmt.Errorf("archive sla state for issue %s: %w", issue.ID, err)
	}
	if !ok {
		return issueOutcome{superseded: 1}, nil
	}

	cancelled, err := d.jobs.CancelPendingForIssue(ctx, issue.ID)
	if err != nil {
		return issueOutcome{archived: 1}, fmt.Errorf("cancel jobs for issue %s: %w", issue.ID, err)
	}
	for _, jobID := range cancelled {
		if err := d.queue.Remove(ctx, jobID); err != nil {
			d.logger.Warn("failed to drop cancelled job from queue",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}

	d.annotate(ctx, issue.ID, domain.SlaStatusArchived, sweepTime)
	d.audits.Record(ctx, &domain.AuditRecord{
		OrgID:   issue.OrgID,
		Actor:   domain.SystemActor,
		Area:    domain.AuditAreaSla,
		Action:  "sla_state_archived",
		IssueID: issue.ID,
		Before:  string(state.Status),
		After:   string(domain.SlaStatusArchived),
	})
	return issueOutcome{archived: 1}, nil
}

// recoverOrphans re-enqueues pending jobs old enough that their queue entry
// must have been lost, e.g. when an earlier sweep's enqueue failed after the
// job row was committed. Remove-then-enqueue keeps the queue free of
// duplicates for jobs that are merely waiting out a retry delay.
func (d *Detector) recoverOrphans(ctx context.Context, sweepTime time.Time) {
	ids, err := d.jobs.ListStalePending(ctx, sweepTime.Add(-d.cfg.OrphanGrace), 100)
	if err != nil {
		d.logger.Warn("orphan scan failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := d.queue.Remove(ctx, id); err != nil {
			d.logger.Warn("orphan requeue: remove failed", zap.String("job_id", id), zap.Error(err))
			continue
		}
		if err := d.queue.Enqueue(ctx, id); err != nil {
			d.logger.Warn("orphan requeue: enqueue failed", zap.String("job_id", id), zap.Error(err))
			continue
		}
		d.logger.Info("re-enqueued orphaned job", zap.String("job_id", id))
	}
}

func (d *Detector) annotate(ctx context.Context, issueID string, status domain.SlaStatus, at time.Time) {
	if err := d.issues.AnnotateSla(ctx, issueID, status, at); err != nil {
		d.logger.Warn("failed to annotate issue", zap.String("issue_id", issueID), zap.Error(err))
	}
}

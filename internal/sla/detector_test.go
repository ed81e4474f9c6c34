package sla

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/audit"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

type memIssueRepo struct {
	mu     sync.Mutex
	issues map[string]*domain.Issue
}

func newMemIssueRepo(issues ...*domain.Issue) *memIssueRepo {
	r := &memIssueRepo{issues: make(map[string]*domain.Issue)}
	for _, issue := range issues {
		r.issues[issue.ID] = issue
	}
	return r
}

func (r *memIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, errors.New("issue not found")
	}
	clone := *issue
	return &clone, nil
}

func (r *memIssueRepo) ListForSweep(_ context.Context) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, issue := range r.issues {
		result = append(result, *issue)
	}
	return result, nil
}

func (r *memIssueRepo) AnnotateSla(_ context.Context, issueID string, status domain.SlaStatus, evaluatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok {
		return errors.New("issue not found")
	}
	issue.SlaStatus = &status
	issue.SlaEvaluatedAt = &evaluatedAt
	return nil
}

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]domain.SlaState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]domain.SlaState)}
}

func (r *memStateRepo) Get(_ context.Context, issueID string) (*domain.SlaState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[issueID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (r *memStateRepo) CompareAndSet(_ context.Context, issueID string, expectedVersion int64, next domain.SlaState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.states[issueID]
	if expectedVersion == 0 {
		if exists {
			return false, nil
		}
		r.states[issueID] = next
		return true, nil
	}
	if !exists || current.Version != expectedVersion {
		return false, nil
	}
	r.states[issueID] = next
	return true, nil
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.EscalationJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*domain.EscalationJob)}
}

func (r *memJobRepo) Create(_ context.Context, job *domain.EscalationJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.IssueID == job.IssueID && existing.Kind == job.Kind &&
			(existing.Status == domain.JobStatusPending || existing.Status == domain.JobStatusInFlight) {
			return false, nil
		}
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusPending
	job.EnqueuedAt = now
	job.UpdatedAt = now
	clone := *job
	r.jobs[job.ID] = &clone
	return true, nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*domain.EscalationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *memJobRepo) MarkInFlight(ctx context.Context, id string) error {
	return r.setStatus(id, domain.JobStatusInFlight)
}

func (r *memJobRepo) MarkDelivered(ctx context.Context, id string) error {
	return r.setStatus(id, domain.JobStatusDelivered)
}

func (r *memJobRepo) MarkCancelled(ctx context.Context, id string) error {
	return r.setStatus(id, domain.JobStatusCancelled)
}

func (r *memJobRepo) MarkDeadLettered(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.Status = domain.JobStatusDeadLettered
	job.LastError = &reason
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memJobRepo) UpdateAttempts(_ context.Context, id string, attempts int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.Attempts = attempts
	job.LastError = &lastError
	job.Status = domain.JobStatusPending
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memJobRepo) CancelPendingForIssue(_ context.Context, issueID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, job := range r.jobs {
		if job.IssueID == issueID &&
			(job.Status == domain.JobStatusPending || job.Status == domain.JobStatusInFlight) {
			job.Status = domain.JobStatusCancelled
			ids = append(ids, job.ID)
		}
	}
	return ids, nil
}

func (r *memJobRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusPending && job.UpdatedAt.Before(olderThan) {
			ids = append(ids, job.ID)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (r *memJobRepo) setStatus(id string, status domain.EscalationJobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memJobRepo) byIssue(issueID string) []*domain.EscalationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.EscalationJob
	for _, job := range r.jobs {
		if job.IssueID == issueID {
			clone := *job
			result = append(result, &clone)
		}
	}
	return result
}

func (r *memJobRepo) touch(id string, updatedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.UpdatedAt = updatedAt
	}
}

type memQueue struct {
	mu         sync.Mutex
	ready      []string
	dead       []string
	removed    []string
	enqueueErr error
}

func (q *memQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.ready = append(q.ready, jobID)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return "", nil
	}
	jobID := q.ready[0]
	q.ready = q.ready[1:]
	return jobID, nil
}

func (q *memQueue) Ack(_ context.Context, _ string) error { return nil }

func (q *memQueue) Nack(_ context.Context, jobID string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, jobID)
	return nil
}

func (q *memQueue) PromoteScheduled(_ context.Context, _ time.Time, _ int64) (int, error) {
	return 0, nil
}

func (q *memQueue) RequeueExpired(_ context.Context, _ time.Time, _ int64) ([]string, error) {
	return nil, nil
}

func (q *memQueue) Remove(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removed = append(q.removed, jobID)
	for i, id := range q.ready {
		if id == jobID {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			break
		}
	}
	return nil
}

func (q *memQueue) DeadLetter(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, jobID)
	return nil
}

func (q *memQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready)), nil
}

func (q *memQueue) readySnapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.ready...)
}

type memAuditRepo struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (r *memAuditRepo) Append(_ context.Context, rec *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *memAuditRepo) ListByIssue(_ context.Context, issueID string, _ int) ([]domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditRecord
	for _, rec := range r.records {
		if rec.IssueID == issueID {
			result = append(result, rec)
		}
	}
	return result, nil
}

type detectorFixture struct {
	issues   *memIssueRepo
	states   *memStateRepo
	jobs     *memJobRepo
	queue    *memQueue
	audits   *memAuditRepo
	detector *Detector
}

func newDetectorFixture(t *testing.T, issues ...*domain.Issue) *detectorFixture {
	t.Helper()
	f := &detectorFixture{
		issues: newMemIssueRepo(issues...),
		states: newMemStateRepo(),
		jobs:   newMemJobRepo(),
		queue:  &memQueue{},
		audits: &memAuditRepo{},
	}
	resolver := NewPolicyResolver(&stubPolicyRepo{policies: map[string]*domain.SlaPolicy{}},
		domain.PolicyTarget{Response: time.Hour, Resolution: 10 * time.Hour})
	f.detector = NewDetector(f.issues, f.states, f.jobs, resolver, f.queue,
		audit.NewSink(f.audits, zap.NewNop()), zap.NewNop(), DetectorConfig{
			WarningFraction: 0.2,
			EvalWorkers:     2,
			JobMaxAttempts:  5,
			OrphanGrace:     10 * time.Minute,
		})
	return f
}

func TestDetectorRecordsOnTrackWithoutJob(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "printer on fire",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityMedium,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)

	report, err := f.detector.Evaluate(context.Background(), createdAt.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 0, report.Transitions)

	state, err := f.states.Get(context.Background(), "issue-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, domain.SlaStatusOnTrack, state.Status)
	assert.Equal(t, int64(1), state.Version)
	assert.Empty(t, f.jobs.byIssue("issue-1"))
	require.NotNil(t, f.issues.issues["issue-1"].SlaStatus)
	assert.Equal(t, domain.SlaStatusOnTrack, *f.issues.issues["issue-1"].SlaStatus)
}

func TestDetectorTransitionsAreEdgeTriggered(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "checkout broken",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityHigh,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)
	ctx := context.Background()

	report, err := f.detector.Evaluate(ctx, createdAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transitions)
	assert.Equal(t, 1, report.Enqueued)

	jobs := f.jobs.byIssue("issue-1")
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.EscalationResponseBreach, jobs[0].Kind)
	assert.Equal(t, int64(1), jobs[0].TargetVersion)
	assert.Equal(t, []string{jobs[0].ID}, f.queue.readySnapshot())

	// Same status on the next sweep raises nothing new.
	report, err = f.detector.Evaluate(ctx, createdAt.Add(2*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transitions)
	assert.Equal(t, 0, report.Enqueued)
	assert.Len(t, f.jobs.byIssue("issue-1"), 1)
}

func TestDetectorEscalatesWarningThenBreach(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "slow dashboard",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityMedium,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)
	ctx := context.Background()

	// Inside the response warning window first.
	_, err := f.detector.Evaluate(ctx, createdAt.Add(55*time.Minute))
	require.NoError(t, err)
	state, _ := f.states.Get(ctx, "issue-1")
	require.NotNil(t, state)
	assert.Equal(t, domain.SlaStatusAtRisk, state.Status)
	assert.Equal(t, int64(1), state.Version)

	// Then past the deadline: a second transition, a second job, bumped version.
	_, err = f.detector.Evaluate(ctx, createdAt.Add(90*time.Minute))
	require.NoError(t, err)
	state, _ = f.states.Get(ctx, "issue-1")
	assert.Equal(t, domain.SlaStatusBreachedResponse, state.Status)
	assert.Equal(t, int64(2), state.Version)

	jobs := f.jobs.byIssue("issue-1")
	require.Len(t, jobs, 2)
	kinds := map[domain.EscalationKind]int64{}
	for _, job := range jobs {
		kinds[job.Kind] = job.TargetVersion
	}
	assert.Equal(t, int64(1), kinds[domain.EscalationResponseWarning])
	assert.Equal(t, int64(2), kinds[domain.EscalationResponseBreach])
}

func TestDetectorArchivesInactiveIssues(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "flapping alerts",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityHigh,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)
	ctx := context.Background()

	_, err := f.detector.Evaluate(ctx, createdAt.Add(2*time.Hour))
	require.NoError(t, err)
	jobs := f.jobs.byIssue("issue-1")
	require.Len(t, jobs, 1)

	f.issues.issues["issue-1"].Status = domain.IssueStatusResolved
	report, err := f.detector.Evaluate(ctx, createdAt.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Archived)

	state, _ := f.states.Get(ctx, "issue-1")
	assert.Equal(t, domain.SlaStatusArchived, state.Status)
	assert.Equal(t, int64(2), state.Version)

	jobs = f.jobs.byIssue("issue-1")
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusCancelled, jobs[0].Status)
	assert.Contains(t, f.queue.removed, jobs[0].ID)

	records, err := f.audits.ListByIssue(ctx, "issue-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sla_state_archived", records[0].Action)
	assert.Equal(t, domain.SystemActor, records[0].Actor)

	// Archived issues stay archived; the next sweep is a no-op.
	report, err = f.detector.Evaluate(ctx, createdAt.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Archived)
}

func TestDetectorRecoversOrphanedJobs(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "broker outage",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityHigh,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)
	ctx := context.Background()

	// Broker down: the sweep commits the job row but the enqueue fails.
	f.queue.enqueueErr = errors.New("connection refused")
	_, err := f.detector.Evaluate(ctx, createdAt.Add(2*time.Hour))
	require.Error(t, err)

	jobs := f.jobs.byIssue("issue-1")
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusPending, jobs[0].Status)
	assert.Empty(t, f.queue.readySnapshot())

	// State already transitioned, so the next sweep has no new edge; only the
	// orphan scan can save this job.
	f.queue.enqueueErr = nil
	f.jobs.touch(jobs[0].ID, createdAt)
	report, err := f.detector.Evaluate(ctx, createdAt.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transitions)
	assert.Equal(t, []string{jobs[0].ID}, f.queue.readySnapshot())
}

func TestDetectorSkipsJobWhenLiveOneExists(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issue := &domain.Issue{
		ID:        "issue-1",
		OrgID:     "org-1",
		Title:     "dup escalations",
		Status:    domain.IssueStatusOpen,
		Priority:  domain.IssuePriorityHigh,
		CreatedAt: createdAt,
	}
	f := newDetectorFixture(t, issue)
	ctx := context.Background()

	// Seed a live job of the same kind, as if an earlier sweep's escalation is
	// still undelivered.
	_, err := f.jobs.Create(ctx, &domain.EscalationJob{
		ID:            "job-prev",
		IssueID:       "issue-1",
		OrgID:         "org-1",
		Kind:          domain.EscalationResponseBreach,
		TargetVersion: 1,
		MaxAttempts:   5,
	})
	require.NoError(t, err)

	report, err := f.detector.Evaluate(ctx, createdAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transitions)
	assert.Equal(t, 0, report.Enqueued)
	assert.Len(t, f.jobs.byIssue("issue-1"), 1)
}

package queue

import (
	"context"
	"time"
)

// Queue is the escalation job queue contract: at-least-once delivery with a
// visibility lease per dequeued job. Any durable broker satisfies it; the
// engine ships a Redis implementation. Entries are job IDs, the durable job
// rows live in Postgres.
type Queue interface {
	// Enqueue appends a job ID to the ready queue. Fails closed when the
	// broker is unavailable; the caller retries on the next sweep.
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue pops the oldest ready job and leases it until the visibility
	// timeout. Returns "" when nothing is ready.
	Dequeue(ctx context.Context) (string, error)
	// Ack removes a leased job for good.
	Ack(ctx context.Context, jobID string) error
	// Nack releases the lease and schedules redelivery after the delay.
	Nack(ctx context.Context, jobID string, delay time.Duration) error
	// PromoteScheduled moves due retry-scheduled jobs back into the ready
	// queue, returning how many were promoted.
	PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error)
	// RequeueExpired reclaims jobs whose lease lapsed without an ack.
	RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error)
	// Remove drops a job from ready, scheduled, and in-flight tracking.
	Remove(ctx context.Context, jobID string) error
	// DeadLetter moves a leased job onto the dead-letter list.
	DeadLetter(ctx context.Context, jobID string) error
	// Depth reports the ready queue length.
	Depth(ctx context.Context) (int64, error)
}

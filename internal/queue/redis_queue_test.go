package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, visibility time.Duration) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, visibility), client
}

func TestEnqueueDequeueLeases(t *testing.T) {
	q, client := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Enqueue(ctx, "job-2"))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	jobID, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	// The job left ready and gained a lease entry.
	depth, _ = q.Depth(ctx)
	assert.Equal(t, int64(1), depth)
	score, err := client.ZScore(ctx, q.inflightKey, "job-1").Result()
	require.NoError(t, err)
	assert.Greater(t, score, float64(time.Now().UnixMilli()))
}

func TestDequeueEmptyReturnsNothing(t *testing.T) {
	q, _ := newTestQueue(t, 30*time.Second)

	jobID, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestAckClearsLease(t *testing.T) {
	q, client := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, "job-1"))
	count, err := client.ZCard(ctx, q.inflightKey).Result()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNackSchedulesRedelivery(t *testing.T) {
	q, _ := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, "job-1", 10*time.Second))

	// Not due yet.
	promoted, err := q.PromoteScheduled(ctx, time.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, promoted)
	jobID, _ := q.Dequeue(ctx)
	assert.Empty(t, jobID)

	// Due after the delay elapses.
	promoted, err = q.PromoteScheduled(ctx, time.Now().Add(11*time.Second), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
	jobID, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestRequeueExpiredReclaimsLapsedLeases(t *testing.T) {
	q, _ := newTestQueue(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// Lease still valid.
	ids, err := q.RequeueExpired(ctx, time.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = q.RequeueExpired(ctx, time.Now().Add(time.Second), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, ids)

	jobID, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestRemoveDropsEverywhere(t *testing.T) {
	q, _ := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Remove(ctx, "job-1"))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// Scheduled entries are dropped too.
	require.NoError(t, q.Enqueue(ctx, "job-2"))
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, "job-2", time.Minute))
	require.NoError(t, q.Remove(ctx, "job-2"))
	promoted, err := q.PromoteScheduled(ctx, time.Now().Add(2*time.Minute), 100)
	require.NoError(t, err)
	assert.Zero(t, promoted)
}

func TestDeadLetterRetiresJob(t *testing.T) {
	q, client := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.DeadLetter(ctx, "job-1"))

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, dead)

	count, err := client.ZCard(ctx, q.inflightKey).Result()
	require.NoError(t, err)
	assert.Zero(t, count)
}

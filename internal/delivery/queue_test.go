package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_EnqueueAndGet(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	rec := &Record{DeliveryID: "dlv_1", SubmissionID: "sub_1", Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, q.Enqueue(ctx, rec))

	got, err := q.Get(ctx, "dlv_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", got.SubmissionID)
}

func TestMemoryQueue_GetBySubmission(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_1", SubmissionID: "sub_1", CreatedAt: time.Now()}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_2", SubmissionID: "sub_1", CreatedAt: time.Now()}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_3", SubmissionID: "sub_2", CreatedAt: time.Now()}))

	recs, err := q.GetBySubmission(ctx, "sub_1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestMemoryQueue_GetPendingRetries_OrderedByNextRetryAt(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_later", Status: StatusPending, NextRetryAt: &later, CreatedAt: now}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_earlier", Status: StatusPending, NextRetryAt: &earlier, CreatedAt: now}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_future", Status: StatusPending, NextRetryAt: &later, CreatedAt: now}))

	due, err := q.GetPendingRetries(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "dlv_earlier", due[0].DeliveryID)
}

func TestMemoryQueue_Update(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	rec := &Record{DeliveryID: "dlv_1", Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, q.Enqueue(ctx, rec))

	rec.Status = StatusSucceeded
	require.NoError(t, q.Update(ctx, rec))

	got, err := q.Get(ctx, "dlv_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
}

func TestMemoryQueue_UpdateUnknownErrors(t *testing.T) {
	q := NewMemoryQueue()
	err := q.Update(context.Background(), &Record{DeliveryID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryQueue_Stats(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_1", Status: StatusSucceeded, CreatedAt: time.Now()}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_2", Status: StatusFailed, CreatedAt: time.Now()}))
	require.NoError(t, q.Enqueue(ctx, &Record{DeliveryID: "dlv_3", Status: StatusFailed, CreatedAt: time.Now()}))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[StatusSucceeded])
	assert.Equal(t, 2, stats[StatusFailed])
}

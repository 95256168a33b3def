package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/worker"
	"formbridge.dev/formbridge/internal/submission"
)

func testIntake(id string) *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: id,
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Properties: map[string]*domain.FieldSchema{"name": {Type: "string"}},
		},
		Destination: &domain.Destination{URL: "https://example.test/hooks/" + id},
	}
}

func newHarness(t *testing.T) (*submission.Manager, submission.Store, *worker.Pools) {
	t.Helper()
	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(testIntake("application")))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()
	mgr := submission.NewManager(reg, store, events, dispatcher, nil, submission.DefaultConfig())

	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	return mgr, store, pools
}

func TestScheduler_ExpiresPastDeadlineSubmissions(t *testing.T) {
	mgr, store, pools := newHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	view, err := mgr.Create(context.Background(), "application", actor, nil, "", "")
	require.NoError(t, err)

	rec, err := store.GetByID(context.Background(), view.ID, "")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	rec.ExpiresAt = &past
	require.NoError(t, store.Save(context.Background(), rec, rec.ResumeToken))

	sched := New(store, mgr, pools, 20*time.Millisecond, 0)
	sched.tick(context.Background())

	updated, err := store.GetByID(context.Background(), view.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.StateExpired, updated.State)
}

func TestScheduler_LeavesUnexpiredSubmissionsAlone(t *testing.T) {
	mgr, store, pools := newHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	view, err := mgr.Create(context.Background(), "application", actor, nil, "", "")
	require.NoError(t, err)

	sched := New(store, mgr, pools, 20*time.Millisecond, 0)
	sched.tick(context.Background())

	updated, err := store.GetByID(context.Background(), view.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.StateDraft, updated.State)
}

func TestScheduler_EvictsTerminalSubmissionsOverMax(t *testing.T) {
	mgr, store, pools := newHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	for i := 0; i < 3; i++ {
		view, err := mgr.Create(context.Background(), "application", actor, nil, "", "")
		require.NoError(t, err)
		rec, err := store.GetByID(context.Background(), view.ID, "")
		require.NoError(t, err)
		rec.State = domain.StateCancelled
		require.NoError(t, store.Save(context.Background(), rec, rec.ResumeToken))
	}

	sched := New(store, mgr, pools, 20*time.Millisecond, 1)
	sched.tick(context.Background())

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	total := 0
	for _, c := range counts {
		total += c
	}
	require.LessOrEqual(t, total, 1)
}

func TestScheduler_StartAndStopReleasesGoroutine(t *testing.T) {
	mgr, store, pools := newHarness(t)
	sched := New(store, mgr, pools, 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	mgr, store, pools := newHarness(t)
	sched := New(store, mgr, pools, 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	require.NotPanics(t, func() {
		sched.Stop()
		sched.Stop()
	})
}

package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/pkg/worker"
	"formbridge.dev/formbridge/internal/submission"
)

func init() {
	_ = logger.Init("error", "json")
}

func testIntakeWithDestination(id, url string) *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: id,
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Required: []string{"name"},
			Properties: map[string]*domain.FieldSchema{"name": {Type: "string"}},
		},
		Destination: &domain.Destination{URL: url, SigningSecret: "shh"},
	}
}

func newEngineHarness(t *testing.T, def *domain.IntakeDefinition, dryRun bool) (*Engine, *submission.Manager, *submission.View) {
	t.Helper()

	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(def))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()

	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	queue := NewMemoryQueue()
	engine := NewEngine(queue, reg, store, nil, nil, pools, DefaultRetryPolicy(), dryRun)

	mgr := submission.NewManager(reg, store, events, dispatcher, engine, submission.DefaultConfig())
	engine.recorder = mgr

	actor := domain.Actor{Kind: domain.ActorHuman, ID: "user_1"}
	view, err := mgr.Create(context.Background(), def.ID, actor, map[string]any{"name": "Ada"}, "", "")
	require.NoError(t, err)

	return engine, mgr, view
}

func TestEngine_BuildPayloadShape(t *testing.T) {
	engine, _, view := newEngineHarness(t, testIntakeWithDestination("contact", "https://example.test/hook"), true)

	sub := &domain.Submission{
		ID: view.ID, IntakeID: view.IntakeID, State: domain.StateSubmitted,
		Fields: map[string]any{"name": "Ada"}, FieldAttribution: map[string]domain.Actor{},
		CreatedAt: time.Now(), UpdatedAt: time.Now(), CreatedBy: domain.Actor{Kind: domain.ActorHuman, ID: "u1"},
	}
	body, err := engine.buildPayload(sub)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"submissionId":"`+view.ID+`"`)
	assert.Contains(t, string(body), `"fields":{"name":"Ada"}`)
}

func TestEngine_Render_DryRunIncludesSignature(t *testing.T) {
	engine, mgr, view := newEngineHarness(t, testIntakeWithDestination("contact", "https://example.test/hook"), true)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}
	view, err := mgr.Submit(context.Background(), view.ID, view.ResumeToken, actor)
	require.NoError(t, err)

	rendered, err := engine.Render(context.Background(), view.ID, view.IntakeID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/hook", rendered.URL)
	assert.Contains(t, rendered.Headers["X-FormBridge-Signature"], "sha256=")
}

func TestEngine_SubmitEnqueuesAndFinalizesInDryRun(t *testing.T) {
	engine, mgr, view := newEngineHarness(t, testIntakeWithDestination("contact", "https://example.test/hook"), true)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	view, err := mgr.Submit(context.Background(), view.ID, view.ResumeToken, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, view.State)

	require.Eventually(t, func() bool {
		recs, err := engine.Stats(context.Background())
		if err != nil {
			return false
		}
		return recs[StatusSucceeded] == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		current, err := mgr.GetByID(context.Background(), view.ID, "")
		return err == nil && current.State == domain.StateFinalized
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_NoDestinationIsNoop(t *testing.T) {
	// Registration requires a destination block, so "no destination" here
	// is a destination with an empty URL.
	def := testIntakeWithDestination("contact", "")
	engine, mgr, view := newEngineHarness(t, def, true)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	view, err := mgr.Submit(context.Background(), view.ID, view.ResumeToken, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, view.State)

	stats, err := engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

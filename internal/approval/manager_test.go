package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/submission"
)

type recordingNotifier struct {
	calls []domain.EventType
}

func (r *recordingNotifier) NotifyReviewDecision(ctx context.Context, submissionID, intakeID string, decision domain.EventType, reason string) error {
	r.calls = append(r.calls, decision)
	return nil
}

func gatedIntake(id string) *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: id,
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Required: []string{"name"},
			Properties: map[string]*domain.FieldSchema{"name": {Type: "string"}},
		},
		Destination: &domain.Destination{URL: "https://example.test/hook"},
		ApprovalGates: []domain.ApprovalGate{
			{ID: "always", Condition: `name == "review-me"`, Required: true},
		},
	}
}

func newGatedSubmission(t *testing.T) (*submission.Manager, submission.Store, *submission.View) {
	t.Helper()
	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(gatedIntake("contact")))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()
	mgr := submission.NewManager(reg, store, events, dispatcher, nil, submission.DefaultConfig())

	actor := domain.Actor{Kind: domain.ActorHuman, ID: "user_1"}
	ctx := context.Background()
	view, err := mgr.Create(ctx, "contact", actor, map[string]any{"name": "review-me"}, "", "")
	require.NoError(t, err)
	view, err = mgr.Submit(ctx, view.ID, view.ResumeToken, actor)
	require.Error(t, err) // needs_approval
	require.Equal(t, domain.StateNeedsReview, view.State)
	return mgr, store, view
}

func TestApprovalManager_Approve(t *testing.T) {
	submissions, _, view := newGatedSubmission(t)
	mgr := NewManager(submissions, nil)
	reviewer := domain.Actor{Kind: domain.ActorHuman, ID: "reviewer_1"}

	out, err := mgr.Approve(context.Background(), view.ID, view.ResumeToken, "", reviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.StateApproved, out.State)
}

func TestApprovalManager_RejectNotifies(t *testing.T) {
	submissions, _, view := newGatedSubmission(t)
	notifier := &recordingNotifier{}
	mgr := NewManager(submissions, notifier)
	reviewer := domain.Actor{Kind: domain.ActorHuman, ID: "reviewer_1"}

	out, err := mgr.Reject(context.Background(), view.ID, view.ResumeToken, "", reviewer, "missing documents")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, out.State)
	assert.Equal(t, []domain.EventType{domain.EventReviewRejected}, notifier.calls)
}

func TestApprovalManager_RequestChangesReturnsToInProgress(t *testing.T) {
	submissions, _, view := newGatedSubmission(t)
	notifier := &recordingNotifier{}
	mgr := NewManager(submissions, notifier)
	reviewer := domain.Actor{Kind: domain.ActorHuman, ID: "reviewer_1"}

	out, err := mgr.RequestChanges(context.Background(), view.ID, view.ResumeToken, "", reviewer, "please clarify revenue")
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProgress, out.State)
	assert.Len(t, notifier.calls, 1)
}

func TestApprovalManager_ApproveWrongStateConflicts(t *testing.T) {
	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(gatedIntake("contact")))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()
	submissions := submission.NewManager(reg, store, events, dispatcher, nil, submission.DefaultConfig())
	mgr := NewManager(submissions, nil)

	actor := domain.Actor{Kind: domain.ActorHuman, ID: "user_1"}
	view, err := submissions.Create(context.Background(), "contact", actor, nil, "", "")
	require.NoError(t, err)

	_, err = mgr.Approve(context.Background(), view.ID, view.ResumeToken, "", actor)
	assert.Error(t, err)
}

// Package approval implements the reviewer-facing decision surface:
// approve, reject and requestChanges on a submission sitting
// in needs_review, sharing the submission manager's pre-flight and
// triple-write discipline rather than owning a parallel ticket store.
package approval

import (
	"context"

	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/submission"
)

// WebhookNotifier reaches a reviewer-facing channel on reject and
// requestChanges. It is a collaborator interface, not part of the
// core — a no-op implementation is valid when no notification channel is
// configured.
type WebhookNotifier interface {
	NotifyReviewDecision(ctx context.Context, submissionID, intakeID string, decision domain.EventType, reason string) error
}

// NoopNotifier discards every notification; used when no reviewer channel
// is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyReviewDecision(ctx context.Context, submissionID, intakeID string, decision domain.EventType, reason string) error {
	return nil
}

// Manager implements approve/reject/requestChanges over submissions
// currently in needs_review, delegating the lock/transition/emit/save
// discipline to the submission manager's ApplyReviewDecision.
type Manager struct {
	submissions *submission.Manager
	notifier WebhookNotifier
}

// NewManager wires the approval manager against the shared submission
// manager. notifier may be nil, in which case a NoopNotifier is used.
func NewManager(submissions *submission.Manager, notifier WebhookNotifier) *Manager {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Manager{submissions: submissions, notifier: notifier}
}

// Approve transitions a needs_review submission to approved, emits
// review.approved, and enqueues delivery — the same non-blocking enqueue
// submit() performs for ungated submissions.
func (m *Manager) Approve(ctx context.Context, submissionID, resumeToken, tenantID string, actor domain.Actor) (*submission.View, error) {
	return m.submissions.ApplyReviewDecision(ctx, submissionID, resumeToken, tenantID, actor,
		submission.TriggerApprove, domain.EventReviewApproved, nil)
}

// Reject transitions a needs_review submission to rejected (terminal),
// emits review.rejected, and notifies the reviewer channel.
func (m *Manager) Reject(ctx context.Context, submissionID, resumeToken, tenantID string, actor domain.Actor, reason string) (*submission.View, error) {
	view, err := m.submissions.ApplyReviewDecision(ctx, submissionID, resumeToken, tenantID, actor,
		submission.TriggerReject, domain.EventReviewRejected, map[string]any{"reason": reason})
	if err != nil {
		return nil, err
	}
	m.notify(ctx, view, domain.EventReviewRejected, reason)
	return view, nil
}

// RequestChanges sends a needs_review submission back to in_progress so the
// original submitter can revise fields, emits review.requested, and
// notifies the reviewer channel.
func (m *Manager) RequestChanges(ctx context.Context, submissionID, resumeToken, tenantID string, actor domain.Actor, reason string) (*submission.View, error) {
	view, err := m.submissions.ApplyReviewDecision(ctx, submissionID, resumeToken, tenantID, actor,
		submission.TriggerRequestChanges, domain.EventReviewRequested, map[string]any{"reason": reason})
	if err != nil {
		return nil, err
	}
	m.notify(ctx, view, domain.EventReviewRequested, reason)
	return view, nil
}

// notify calls the reviewer channel best-effort; a notification failure is
// logged and never surfaces back to the caller, since the state transition
// already committed.
func (m *Manager) notify(ctx context.Context, view *submission.View, decision domain.EventType, reason string) {
	if err := m.notifier.NotifyReviewDecision(ctx, view.ID, view.IntakeID, decision, reason); err != nil {
		logger.Warn("reviewer notification failed",
			logger.SubmissionField(view.ID),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
	}
}

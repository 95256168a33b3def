package submission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/condition"
	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/idgen"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/validate"
)

// EventAppender is the durable leg of the triple-write discipline (
// step 2). It is the eventstore.Store interface, restated here to keep this
// package importable without eventstore importing submission back.
type EventAppender interface {
	Append(ctx context.Context, submissionID string, event *domain.IntakeEvent) error
}

// DeliveryEnqueuer is the manager's only dependency on the delivery engine.
// Defined here, not imported from internal/delivery, so delivery can depend
// on submission's types without an import cycle.
type DeliveryEnqueuer interface {
	EnqueueDelivery(ctx context.Context, submissionID, intakeID string) (deliveryID string, err error)
}

// View is the externally-visible rendering of a Submission: the full
// record plus the intake schema and the resume URL shape callers need,
// with the inline event log redacted of anything resume-token-shaped.
type View struct {
	ID string
	IntakeID string
	TenantID string
	State domain.State
	ResumeToken string
	Fields map[string]any
	FieldAttribution map[string]domain.Actor
	ExpiresAt *time.Time
	Schema *domain.FieldSchema
	Events []*domain.IntakeEvent
}

// Config holds the manager's tunable, process-wide settings.
type Config struct {
	TokenTTL time.Duration
	BaseURL string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{TokenTTL: 7 * 24 * time.Hour}
}

// Manager implements create/setFields/validate/submit and the
// resume-token/handoff operations, orchestrating the registry, validator,
// submission store, event store, dispatcher and state machine behind the
// triple-write discipline.
type Manager struct {
	registry *intake.Registry
	store Store
	events EventAppender
	dispatcher *domain.EventDispatcher
	locks *KeyedLocks
	delivery DeliveryEnqueuer
	cfg Config
}

// NewManager wires the submission manager's collaborators. delivery may be
// nil: submit() then transitions to submitted/needs_review normally but
// skips the enqueue step, which is useful for tests and for intakes with no
// destination configured.
func NewManager(registry *intake.Registry, store Store, events EventAppender, dispatcher *domain.EventDispatcher, delivery DeliveryEnqueuer, cfg Config) *Manager {
	return &Manager{
		registry: registry,
		store: store,
		events: events,
		dispatcher: dispatcher,
		locks: NewKeyedLocks(),
		delivery: delivery,
		cfg: cfg,
	}
}

// SetDeliveryEnqueuer wires the delivery enqueuer after construction. This
// exists because the submission manager and delivery engine are mutual
// collaborators (the engine needs the manager as its SubmissionRecorder):
// the composition root builds the manager with a nil enqueuer, builds the
// engine against it, then calls this to close the loop.
func (m *Manager) SetDeliveryEnqueuer(delivery DeliveryEnqueuer) {
	m.delivery = delivery
}

// emit appends ev to rec's inline log, persists it through the event store,
// and fans it out through the dispatcher, in that order. Dispatch
// failures are logged and isolated; they never roll back the write.
func (m *Manager) emit(ctx context.Context, rec *domain.Submission, evType domain.EventType, actor domain.Actor, payload map[string]any) *domain.IntakeEvent {
	ev := &domain.IntakeEvent{
		EventID: idgen.NewEventID(),
		Type: evType,
		SubmissionID: rec.ID,
		Timestamp: now(),
		Actor: actor,
		State: rec.State,
		Payload: payload,
		Version: len(rec.Events) + 1,
	}
	rec.Events = append(rec.Events, ev)

	if err := m.events.Append(ctx, rec.ID, ev); err != nil {
		logger.Error("event store append failed",
			logger.SubmissionField(rec.ID),
			zap.String("event_type", string(evType)),
			zap.Error(err),
		)
	}
	if m.dispatcher != nil {
		_ = m.dispatcher.Dispatch(ctx, ev)
	}
	return ev
}

// now is a seam so tests can observe deterministic timestamps if needed;
// production code always calls time.Now directly through it.
var now = time.Now

func rejectReserved(fields map[string]any) error {
	for k := range fields {
		if domain.ReservedFieldNames[k] {
			return apperrors.InvalidRequest(fmt.Sprintf("field name %q is reserved", k))
		}
	}
	return nil
}

func toView(rec *domain.Submission, def *domain.IntakeDefinition) *View {
	v := &View{
		ID: rec.ID,
		IntakeID: rec.IntakeID,
		TenantID: rec.TenantID,
		State: rec.State,
		ResumeToken: rec.ResumeToken,
		Fields: rec.Fields,
		FieldAttribution: rec.FieldAttribution,
		ExpiresAt: rec.ExpiresAt,
		Events: rec.Events,
	}
	if def != nil {
		v.Schema = def.Schema
	}
	return v
}

// Create implements create(intakeId, actor, initialFields?, idempotencyKey?, tenantId?).
func (m *Manager) Create(ctx context.Context, intakeID string, actor domain.Actor, initialFields map[string]any, idempotencyKey, tenantID string) (*View, error) {
	def, err := m.registry.Get(intakeID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		unlock := m.locks.Lock(idempotencyKey)
		defer unlock()

		existing, err := m.store.GetByIdempotencyKey(ctx, tenantID, intakeID, idempotencyKey)
		if err == nil {
			return toView(existing, def), nil
		}
		if err != ErrNotFound {
			return nil, apperrors.StorageError(err)
		}
	}

	if err := rejectReserved(initialFields); err != nil {
		return nil, err
	}

	id := idgen.NewSubmissionID()
	token := idgen.NewResumeToken()
	createdAt := now()
	var expiresAt *time.Time
	if m.cfg.TokenTTL > 0 {
		t := createdAt.Add(m.cfg.TokenTTL)
		expiresAt = &t
	}

	rec := &domain.Submission{
		ID: id,
		IntakeID: intakeID,
		TenantID: tenantID,
		State: domain.StateDraft,
		ResumeToken: token,
		Fields: make(map[string]any),
		FieldAttribution: make(map[string]domain.Actor),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		ExpiresAt: expiresAt,
		CreatedBy: actor,
		UpdatedBy: actor,
		IdempotencyKey: idempotencyKey,
	}

	m.emit(ctx, rec, domain.EventSubmissionCreated, actor, map[string]any{"intakeId": intakeID})

	if err := m.store.Save(ctx, rec, ""); err != nil {
		return nil, apperrors.StorageError(err)
	}

	if len(initialFields) > 0 {
		return m.SetFields(ctx, rec.ID, rec.ResumeToken, actor, initialFields)
	}

	return toView(rec, def), nil
}

// loadForMutation runs the shared pre-flight: load, tenant-scope,
// constant-time token compare. It is called with key already locked by the
// caller.
func (m *Manager) loadForMutation(ctx context.Context, submissionID, resumeToken, tenantID string) (*domain.Submission, *domain.IntakeDefinition, error) {
	rec, err := m.store.GetByID(ctx, submissionID, tenantID)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil, apperrors.NotFound(fmt.Sprintf("submission %q not found", submissionID))
		}
		return nil, nil, apperrors.StorageError(err)
	}
	if resumeToken != "" && !idgen.ConstantTimeEqual(rec.ResumeToken, resumeToken) {
		return nil, nil, apperrors.InvalidResumeToken("resume token does not match")
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now()) {
		return nil, nil, apperrors.Expired(fmt.Sprintf("submission %q has expired", submissionID))
	}
	def, err := m.registry.Get(rec.IntakeID)
	if err != nil {
		return nil, nil, err
	}
	return rec, def, nil
}

// SetFields implements setFields(submissionId, resumeToken, actor, fields).
func (m *Manager) SetFields(ctx context.Context, submissionID, resumeToken string, actor domain.Actor, fields map[string]any) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, resumeToken, "")
	if err != nil {
		return nil, err
	}

	if err := rejectReserved(fields); err != nil {
		return nil, err
	}

	if errs := validate.Partial(def.Schema, fields); len(errs) > 0 {
		return nil, apperrors.Invalid("field validation failed", validate.ToAppErrorFields(errs))
	}

	oldToken := rec.ResumeToken
	referencesFile := false
	for field, newValue := range fields {
		oldValue := rec.Fields[field]
		rec.Fields[field] = newValue
		rec.FieldAttribution[field] = actor
		m.emit(ctx, rec, domain.EventFieldUpdated, actor, domain.FieldUpdatedPayload{
			Field: field, OldValue: oldValue, NewValue: newValue,
		}.ToPayload())
		if fieldSchema := validate.LookupFieldSchema(def.Schema, field); fieldSchema != nil && fieldSchema.Type == "file" {
			referencesFile = true
		}
	}

	trigger := TriggerCreateOrSetFields
	if referencesFile {
		trigger = TriggerSetFieldsFile
	}
	if to, ok := Next(rec.State, trigger); ok {
		rec.State = to
	}
	rec.ResumeToken = idgen.NewResumeToken()
	rec.UpdatedAt = now()
	rec.UpdatedBy = actor

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}
	return toView(rec, def), nil
}

// Validate implements validate(submissionId, resumeToken): full validation
// without mutating state beyond the idempotent in_progress -> in_progress
// self-transition, emitting validation.failed on error.
func (m *Manager) Validate(ctx context.Context, submissionID, resumeToken string) (*View, []validate.FieldError, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, resumeToken, "")
	if err != nil {
		return nil, nil, err
	}

	errs := validate.Full(def.Schema, rec.Fields)
	if len(errs) > 0 {
		m.emit(ctx, rec, domain.EventValidationFailed, rec.UpdatedBy, domain.ValidationFailedPayload{
			Errors: fieldErrorsToMaps(errs),
		}.ToPayload())
		if err := m.store.Save(ctx, rec, rec.ResumeToken); err != nil {
			return nil, nil, apperrors.StorageError(err)
		}
		return toView(rec, def), errs, nil
	}

	m.emit(ctx, rec, domain.EventValidationPassed, rec.UpdatedBy, nil)
	if err := m.store.Save(ctx, rec, rec.ResumeToken); err != nil {
		return nil, nil, apperrors.StorageError(err)
	}
	return toView(rec, def), nil, nil
}

func fieldErrorsToMaps(errs []validate.FieldError) []map[string]string {
	out := make([]map[string]string, len(errs))
	for i, e := range errs {
		out[i] = map[string]string{"field": e.Field, "message": e.Message, "type": string(e.Code)}
	}
	return out
}

// Submit implements submit(submissionId, resumeToken, actor, idempotencyKey?).
func (m *Manager) Submit(ctx context.Context, submissionID, resumeToken string, actor domain.Actor) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, resumeToken, "")
	if err != nil {
		return nil, err
	}

	if errs := validate.Full(def.Schema, rec.Fields); len(errs) > 0 {
		return nil, apperrors.Invalid("field validation failed", validate.ToAppErrorFields(errs))
	}

	gated, err := anyGateTriggered(def.ApprovalGates, rec.Fields)
	if err != nil {
		logger.Warn("approval gate condition failed to evaluate",
			logger.SubmissionField(rec.ID), zap.Error(err))
	}

	oldToken := rec.ResumeToken
	rec.ResumeToken = idgen.NewResumeToken()
	rec.UpdatedAt = now()
	rec.UpdatedBy = actor

	if gated {
		to, ok := Next(rec.State, TriggerSubmitGated)
		if !ok {
			return nil, apperrors.Conflict(fmt.Sprintf("cannot submit from state %q", rec.State))
		}
		rec.State = to
		m.emit(ctx, rec, domain.EventReviewRequested, actor, nil)
		if err := m.store.Save(ctx, rec, oldToken); err != nil {
			return nil, apperrors.StorageError(err)
		}
		return toView(rec, def), apperrors.NeedsApproval("submission requires review before delivery")
	}

	to, ok := Next(rec.State, TriggerSubmitPlain)
	if !ok {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot submit from state %q", rec.State))
	}
	rec.State = to
	m.emit(ctx, rec, domain.EventSubmissionSubmitted, actor, nil)

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}

	m.enqueueDelivery(ctx, rec)
	return toView(rec, def), nil
}

// enqueueDelivery is best-effort and non-blocking from the caller's
// perspective: a nil DeliveryEnqueuer (no destination configured, or tests)
// is a silent no-op, and an enqueue failure is logged, never surfaced as a
// submit() failure — submit already committed the state transition.
func (m *Manager) enqueueDelivery(ctx context.Context, rec *domain.Submission) {
	if m.delivery == nil {
		return
	}
	if _, err := m.delivery.EnqueueDelivery(ctx, rec.ID, rec.IntakeID); err != nil {
		logger.Error("delivery enqueue failed",
			logger.SubmissionField(rec.ID), zap.Error(err))
	}
}

// anyGateTriggered reports whether any approval gate condition evaluates
// true against fields. A gate whose condition fails to parse or
// evaluate is treated as not-triggered rather than aborting submit — an
// approval gate author's mistake must not make an intake un-submittable.
func anyGateTriggered(gates []domain.ApprovalGate, fields map[string]any) (bool, error) {
	var firstErr error
	for _, gate := range gates {
		ok, err := condition.Evaluate(gate.Condition, fields)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

// GetByResumeToken implements getSubmissionByResumeToken(token): an O(1)
// index lookup that also rotates nothing — the token itself is not
// rotated on a bare read, only on mutation.
func (m *Manager) GetByResumeToken(ctx context.Context, token string) (*View, error) {
	rec, err := m.store.GetByResumeToken(ctx, token)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.NotFound("resume token not recognized")
		}
		return nil, apperrors.StorageError(err)
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now()) {
		return nil, apperrors.Expired(fmt.Sprintf("submission %q has expired", rec.ID))
	}
	def, err := m.registry.Get(rec.IntakeID)
	if err != nil {
		return nil, err
	}
	return toView(rec, def), nil
}

// GetByID implements a tenant-scoped read by submission id.
func (m *Manager) GetByID(ctx context.Context, submissionID, tenantID string) (*View, error) {
	rec, err := m.store.GetByID(ctx, submissionID, tenantID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.NotFound(fmt.Sprintf("submission %q not found", submissionID))
		}
		return nil, apperrors.StorageError(err)
	}
	def, err := m.registry.Get(rec.IntakeID)
	if err != nil {
		return nil, err
	}
	return toView(rec, def), nil
}

// GenerateHandoffURL implements generateHandoffUrl(submissionId, actor): it
// rotates the resume token and returns a base-URL-embedded handoff link.
func (m *Manager) GenerateHandoffURL(ctx context.Context, submissionID string, actor domain.Actor) (string, *View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, "", "")
	if err != nil {
		return "", nil, err
	}

	oldToken := rec.ResumeToken
	rec.ResumeToken = idgen.NewResumeToken()
	rec.UpdatedAt = now()
	rec.UpdatedBy = actor

	m.emit(ctx, rec, domain.EventHandoffLinkIssued, actor, map[string]any{"resumeToken": rec.ResumeToken})

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return "", nil, apperrors.StorageError(err)
	}

	url := fmt.Sprintf("%s/submissions/resume/%s", m.cfg.BaseURL, rec.ResumeToken)
	return url, toView(rec, def), nil
}

// ApplyReviewDecision performs the shared approve/reject/requestChanges
// transition: pre-flight, require the submission currently sits in
// needs_review, transition per trigger, emit eventType, and — only for
// TriggerApprove — enqueue delivery the same way submit() does for an
// ungated submission. The approval package calls this instead of
// duplicating the submission manager's lock/emit/save discipline.
func (m *Manager) ApplyReviewDecision(ctx context.Context, submissionID, resumeToken, tenantID string, actor domain.Actor, trigger Trigger, eventType domain.EventType, payload map[string]any) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, resumeToken, tenantID)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.StateNeedsReview {
		return nil, apperrors.Conflict(fmt.Sprintf("submission %q is not awaiting review (state: %s)", submissionID, rec.State))
	}

	to, ok := Next(rec.State, trigger)
	if !ok {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot apply %q from state %q", trigger, rec.State))
	}

	oldToken := rec.ResumeToken
	rec.State = to
	rec.ResumeToken = idgen.NewResumeToken()
	rec.UpdatedAt = now()
	rec.UpdatedBy = actor

	m.emit(ctx, rec, eventType, actor, payload)

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}

	if trigger == TriggerApprove {
		m.enqueueDelivery(ctx, rec)
	}
	return toView(rec, def), nil
}

// RequestUpload implements the submission-manager half of requestUpload:
// record the negotiated upload as pending, emit
// upload.requested, rotate the resume token.
func (m *Manager) RequestUpload(ctx context.Context, submissionID, resumeToken string, actor domain.Actor, rec domain.UploadRecord) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	sub, def, err := m.loadForMutation(ctx, submissionID, resumeToken, "")
	if err != nil {
		return nil, err
	}

	if sub.Uploads == nil {
		sub.Uploads = make(map[string]*domain.UploadRecord)
	}
	rec.Status = domain.UploadPending
	sub.Uploads[rec.UploadID] = &rec

	oldToken := sub.ResumeToken
	sub.ResumeToken = idgen.NewResumeToken()
	sub.UpdatedAt = now()
	sub.UpdatedBy = actor

	m.emit(ctx, sub, domain.EventUploadRequested, actor, map[string]any{
		"uploadId": rec.UploadID, "field": rec.Field, "filename": rec.Filename,
	})

	if err := m.store.Save(ctx, sub, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}
	return toView(sub, def), nil
}

// ConfirmUpload implements the submission-manager half of confirmUpload:
// mark the negotiated upload completed or failed and emit the matching
// event, rotating the resume token.
func (m *Manager) ConfirmUpload(ctx context.Context, submissionID, resumeToken, uploadID string, actor domain.Actor, status domain.UploadStatus, downloadURL, errMsg string) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	sub, def, err := m.loadForMutation(ctx, submissionID, resumeToken, "")
	if err != nil {
		return nil, err
	}

	rec, ok := sub.Uploads[uploadID]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("upload %q not found", uploadID))
	}
	rec.Status = status
	rec.DownloadURL = downloadURL
	rec.Error = errMsg
	if status == domain.UploadCompleted {
		t := now()
		rec.UploadedAt = &t
	}

	if to, ok := Next(sub.State, TriggerUploadCompleted); ok {
		sub.State = to
	}

	oldToken := sub.ResumeToken
	sub.ResumeToken = idgen.NewResumeToken()
	sub.UpdatedAt = now()
	sub.UpdatedBy = actor

	evType := domain.EventUploadCompleted
	if status == domain.UploadFailed {
		evType = domain.EventUploadFailed
	}
	m.emit(ctx, sub, evType, actor, map[string]any{"uploadId": uploadID, "error": errMsg})

	if err := m.store.Save(ctx, sub, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}
	return toView(sub, def), nil
}

// RecordDeliveryEvent appends a delivery.attempted/succeeded/failed event to
// submissionID's log without attempting a state transition. The delivery
// engine calls this after every attempt; FinalizeAfterDelivery is the
// separate call that actually advances state on success.
func (m *Manager) RecordDeliveryEvent(ctx context.Context, submissionID string, eventType domain.EventType, payload map[string]any) error {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, err := m.store.GetByID(ctx, submissionID, "")
	if err != nil {
		if err == ErrNotFound {
			return apperrors.NotFound(fmt.Sprintf("submission %q not found", submissionID))
		}
		return apperrors.StorageError(err)
	}

	m.emit(ctx, rec, eventType, domain.SystemActor, payload)
	if err := m.store.Save(ctx, rec, rec.ResumeToken); err != nil {
		return apperrors.StorageError(err)
	}
	return nil
}

// FinalizeAfterDelivery transitions a submitted or approved submission to
// finalized once its webhook delivery has succeeded, emitting
// submission.finalized.
func (m *Manager) FinalizeAfterDelivery(ctx context.Context, submissionID string) (*View, error) {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, submissionID, "", "")
	if err != nil {
		return nil, err
	}

	to, ok := Next(rec.State, TriggerDeliverySucceeded)
	if !ok {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot finalize from state %q", rec.State))
	}

	oldToken := rec.ResumeToken
	rec.State = to
	rec.ResumeToken = idgen.NewResumeToken()
	rec.UpdatedAt = now()
	rec.UpdatedBy = domain.SystemActor

	m.emit(ctx, rec, domain.EventSubmissionFinalized, domain.SystemActor, nil)

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return nil, apperrors.StorageError(err)
	}
	return toView(rec, def), nil
}

// ExpireSubmission force-transitions a non-terminal submission to expired,
// emitting submission.expired. Called by the background scheduler once
// ExpiresAt has passed; a no-op (returns nil) if the submission is already
// terminal, since TriggerExpire is only valid from a non-terminal state.
func (m *Manager) ExpireSubmission(ctx context.Context, submissionID string) error {
	unlock := m.locks.Lock(submissionID)
	defer unlock()

	rec, err := m.store.GetByID(ctx, submissionID, "")
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return apperrors.StorageError(err)
	}

	to, ok := Next(rec.State, TriggerExpire)
	if !ok {
		return nil
	}

	oldToken := rec.ResumeToken
	rec.State = to
	rec.UpdatedAt = now()
	rec.UpdatedBy = domain.SystemActor

	m.emit(ctx, rec, domain.EventSubmissionExpired, domain.SystemActor, nil)

	if err := m.store.Save(ctx, rec, oldToken); err != nil {
		return apperrors.StorageError(err)
	}
	return nil
}

// EmitHandoffResumed implements emitHandoffResumed(token, actor): it
// records that a human opened a handoff link, without rotating the token or
// changing state.
func (m *Manager) EmitHandoffResumed(ctx context.Context, token string, actor domain.Actor) (*View, error) {
	rec, err := m.store.GetByResumeToken(ctx, token)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.NotFound("resume token not recognized")
		}
		return nil, apperrors.StorageError(err)
	}

	unlock := m.locks.Lock(rec.ID)
	defer unlock()

	rec, def, err := m.loadForMutation(ctx, rec.ID, token, "")
	if err != nil {
		return nil, err
	}

	m.emit(ctx, rec, domain.EventHandoffResumed, actor, nil)
	if err := m.store.Save(ctx, rec, rec.ResumeToken); err != nil {
		return nil, apperrors.StorageError(err)
	}
	return toView(rec, def), nil
}

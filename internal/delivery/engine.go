package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/idgen"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/pkg/worker"
	"formbridge.dev/formbridge/internal/submission"
)

// SubmissionRecorder is the engine's only dependency on the submission
// manager: recording delivery events into a submission's log, and
// finalizing it once delivery succeeds.
type SubmissionRecorder interface {
	RecordDeliveryEvent(ctx context.Context, submissionID string, eventType domain.EventType, payload map[string]any) error
	FinalizeAfterDelivery(ctx context.Context, submissionID string) (*submission.View, error)
}

// RenderedRequest is what dry-run mode returns instead of sending a
// request: the exact URL, method, headers and body a live send would use.
type RenderedRequest struct {
	Method string
	URL string
	Headers map[string]string
	Body []byte
}

// Engine implements payload construction, HMAC signing,
// enqueue/process, dry-run rendering, and the background retry scheduler.
type Engine struct {
	queue Queue
	registry *intake.Registry
	submissions submission.Store
	recorder SubmissionRecorder
	client *WebhookClient
	pools *worker.Pools
	policy RetryPolicy
	dryRun bool

	// river is the optional durable dispatcher . When set, both
	// the initial attempt and every scheduled retry are inserted as a River
	// job instead of being submitted to the in-process worker pool, so they
	// survive a process restart. Nil means dispatch exclusively through pools.
	river *river.Client[pgx.Tx]

	stopCh chan struct{}
}

// SetRiverClient wires the durable dispatcher. Must be called, if at all,
// before any delivery is enqueued — it is not safe to flip mid-flight.
func (e *Engine) SetRiverClient(client *river.Client[pgx.Tx]) {
	e.river = client
}

// dispatch submits a delivery attempt for deliveryID through whichever
// dispatcher is configured: the durable River worker when SetRiverClient
// was called, otherwise the in-process worker pool.
func (e *Engine) dispatch(ctx context.Context, deliveryID string) {
	if e.river != nil {
		if _, err := e.river.Insert(ctx, DeliveryJobArgs{DeliveryID: deliveryID}, nil); err != nil {
			logger.Error("failed to insert durable delivery job", zap.String("delivery_id", deliveryID), zap.Error(err))
		}
		return
	}
	if err := e.pools.SubmitDetached("delivery", func(taskCtx context.Context) {
		e.attempt(taskCtx, deliveryID)
	}); err != nil {
		logger.Error("failed to submit delivery task", zap.String("delivery_id", deliveryID), zap.Error(err))
	}
}

// NewEngine wires the delivery engine. client may be nil only when dryRun
// is true (no outbound HTTP call is ever made in dry-run mode).
func NewEngine(queue Queue, registry *intake.Registry, submissions submission.Store, recorder SubmissionRecorder, client *WebhookClient, pools *worker.Pools, policy RetryPolicy, dryRun bool) *Engine {
	return &Engine{
		queue: queue,
		registry: registry,
		submissions: submissions,
		recorder: recorder,
		client: client,
		pools: pools,
		policy: policy,
		dryRun: dryRun,
		stopCh: make(chan struct{}),
	}
}

// EnqueueDelivery implements submission.DeliveryEnqueuer: it returns
// immediately with a deliveryId, the webhook send runs asynchronously on
// the delivery worker pool. A nil error with an empty deliveryId means the
// intake has no destination configured — not an error, just nothing to do.
func (e *Engine) EnqueueDelivery(ctx context.Context, submissionID, intakeID string) (string, error) {
	def, err := e.registry.Get(intakeID)
	if err != nil {
		return "", err
	}
	if def.Destination == nil || def.Destination.URL == "" {
		return "", nil
	}

	rec := &Record{
		DeliveryID: idgen.NewDeliveryID(),
		SubmissionID: submissionID,
		IntakeID: intakeID,
		DestinationURL: def.Destination.URL,
		Status: StatusPending,
		CreatedAt: time.Now(),
	}
	if err := e.queue.Enqueue(ctx, rec); err != nil {
		return "", err
	}

	e.dispatch(ctx, rec.DeliveryID)

	return rec.DeliveryID, nil
}

// buildPayload renders the exact outbound JSON body specified in
func (e *Engine) buildPayload(sub *domain.Submission) ([]byte, error) {
	body := map[string]any{
		"submissionId": sub.ID,
		"intakeId": sub.IntakeID,
		"state": sub.State,
		"fields": sub.Fields,
		"fieldAttribution": sub.FieldAttribution,
		"metadata": map[string]any{
			"createdAt": sub.CreatedAt,
			"updatedAt": sub.UpdatedAt,
			"createdBy": sub.CreatedBy,
		},
	}
	return json.Marshal(body)
}

func (e *Engine) buildHeaders(def *domain.IntakeDefinition, bodyBytes []byte) map[string]string {
	ts := time.Now().UTC().Format(time.RFC3339)
	headers := map[string]string{
		"Content-Type": "application/json",
		"X-FormBridge-Timestamp": ts,
	}
	if def.Destination != nil {
		for k, v := range def.Destination.Headers {
			headers[k] = v
		}
		if def.Destination.SigningSecret != "" {
			headers["X-FormBridge-Signature"] = "sha256=" + signBody(def.Destination.SigningSecret, bodyBytes)
		}
	}
	// System headers win on conflict with destination-configured ones.
	headers["Content-Type"] = "application/json"
	headers["X-FormBridge-Timestamp"] = ts
	return headers
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Render produces the dry-run view of what a live send would do, without
// making any outbound HTTP call.
func (e *Engine) Render(ctx context.Context, submissionID, intakeID string) (*RenderedRequest, error) {
	sub, err := e.submissions.GetByID(ctx, submissionID, "")
	if err != nil {
		return nil, err
	}
	def, err := e.registry.Get(intakeID)
	if err != nil {
		return nil, err
	}
	body, err := e.buildPayload(sub)
	if err != nil {
		return nil, err
	}
	url := ""
	if def.Destination != nil {
		url = def.Destination.URL
	}
	return &RenderedRequest{
		Method: http.MethodPost,
		URL: url,
		Headers: e.buildHeaders(def, body),
		Body: body,
	}, nil
}

// attempt performs (or, in dry-run mode, simulates) one delivery attempt
// and updates the record accordingly, scheduling a retry or finalizing the
// submission as appropriate.
func (e *Engine) attempt(ctx context.Context, deliveryID string) {
	rec, err := e.queue.Get(ctx, deliveryID)
	if err != nil {
		logger.Error("delivery record missing at attempt time", zap.String("delivery_id", deliveryID), zap.Error(err))
		return
	}

	sub, err := e.submissions.GetByID(ctx, rec.SubmissionID, "")
	if err != nil {
		logger.Error("submission missing at delivery attempt", logger.SubmissionField(rec.SubmissionID), zap.Error(err))
		return
	}
	def, err := e.registry.Get(rec.IntakeID)
	if err != nil {
		logger.Error("intake missing at delivery attempt", zap.String("intake_id", rec.IntakeID), zap.Error(err))
		return
	}

	body, err := e.buildPayload(sub)
	if err != nil {
		e.fail(ctx, rec, 0, fmt.Sprintf("build payload: %v", err))
		return
	}
	headers := e.buildHeaders(def, body)

	rec.Attempts++
	now := time.Now()
	rec.LastAttemptAt = &now

	statusCode, sendErr := e.send(ctx, rec.DestinationURL, headers, body)

	_ = e.recorder.RecordDeliveryEvent(ctx, rec.SubmissionID, domain.EventDeliveryAttempted, domain.DeliveryEventPayload{
		DeliveryID: rec.DeliveryID, DestinationURL: rec.DestinationURL, Attempt: rec.Attempts, StatusCode: statusCode,
	}.ToPayload())

	if sendErr == nil && statusCode >= 200 && statusCode < 300 {
		e.succeed(ctx, rec, statusCode)
		return
	}

	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	} else {
		errMsg = fmt.Sprintf("destination responded with status %d", statusCode)
	}
	e.failOrRetry(ctx, rec, statusCode, errMsg)
}

// send performs the live HTTP POST, or — in dry-run mode — simulates a
// successful delivery without any outbound call.
func (e *Engine) send(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	if e.dryRun {
		return http.StatusOK, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (e *Engine) succeed(ctx context.Context, rec *Record, statusCode int) {
	rec.Status = StatusSucceeded
	rec.StatusCode = statusCode
	rec.NextRetryAt = nil
	if err := e.queue.Update(ctx, rec); err != nil {
		logger.Error("failed to persist delivery success", zap.String("delivery_id", rec.DeliveryID), zap.Error(err))
	}

	_ = e.recorder.RecordDeliveryEvent(ctx, rec.SubmissionID, domain.EventDeliverySucceeded, domain.DeliveryEventPayload{
		DeliveryID: rec.DeliveryID, DestinationURL: rec.DestinationURL, Attempt: rec.Attempts, StatusCode: statusCode,
	}.ToPayload())

	if _, err := e.recorder.FinalizeAfterDelivery(ctx, rec.SubmissionID); err != nil {
		logger.Warn("finalize after delivery failed", logger.SubmissionField(rec.SubmissionID), zap.Error(err))
	}
}

func (e *Engine) failOrRetry(ctx context.Context, rec *Record, statusCode int, errMsg string) {
	if rec.Attempts >= e.policy.MaxRetries {
		e.fail(ctx, rec, statusCode, errMsg)
		return
	}
	next := time.Now().Add(e.policy.Delay(rec.Attempts))
	rec.Status = StatusPending
	rec.StatusCode = statusCode
	rec.Error = errMsg
	rec.NextRetryAt = &next
	if err := e.queue.Update(ctx, rec); err != nil {
		logger.Error("failed to persist delivery retry schedule", zap.String("delivery_id", rec.DeliveryID), zap.Error(err))
	}
}

func (e *Engine) fail(ctx context.Context, rec *Record, statusCode int, errMsg string) {
	rec.Status = StatusFailed
	rec.StatusCode = statusCode
	rec.Error = errMsg
	rec.NextRetryAt = nil
	if err := e.queue.Update(ctx, rec); err != nil {
		logger.Error("failed to persist delivery failure", zap.String("delivery_id", rec.DeliveryID), zap.Error(err))
	}

	_ = e.recorder.RecordDeliveryEvent(ctx, rec.SubmissionID, domain.EventDeliveryFailed, domain.DeliveryEventPayload{
		DeliveryID: rec.DeliveryID, DestinationURL: rec.DestinationURL, Attempt: rec.Attempts, StatusCode: statusCode, Error: errMsg,
	}.ToPayload())
}

// StartRetryScheduler starts the background tick that scans
// GetPendingRetries and resumes deliveries whose nextRetryAt has passed —
// necessary after a process restart, since in-flight retry timers do not
// survive one. Mirrors the singleton start/stop ticker shape used by the
// expiry scheduler .
func (e *Engine) StartRetryScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.tick(ctx)
			}
		}
	}()
}

// StopRetryScheduler stops the background tick loop.
func (e *Engine) StopRetryScheduler() {
	close(e.stopCh)
}

func (e *Engine) tick(ctx context.Context) {
	due, err := e.queue.GetPendingRetries(ctx, time.Now())
	if err != nil {
		logger.Error("failed to scan pending deliveries", zap.Error(err))
		return
	}
	for _, rec := range due {
		e.dispatch(ctx, rec.DeliveryID)
	}
}

// Stats exposes queue-wide counters for observability.
func (e *Engine) Stats(ctx context.Context) (map[Status]int, error) {
	return e.queue.Stats(ctx)
}

package domain

import "time"

// EventType enumerates the immutable event kinds a submission can emit.
// Payload shape varies by type but never carries the current resume token —
// events are redacted of it on every read path.
type EventType string

const (
	EventSubmissionCreated EventType = "submission.created"
	EventFieldUpdated EventType = "field.updated"
	EventValidationPassed EventType = "validation.passed"
	EventValidationFailed EventType = "validation.failed"
	EventUploadRequested EventType = "upload.requested"
	EventUploadCompleted EventType = "upload.completed"
	EventUploadFailed EventType = "upload.failed"
	EventSubmissionSubmitted EventType = "submission.submitted"
	EventReviewRequested EventType = "review.requested"
	EventReviewApproved EventType = "review.approved"
	EventReviewRejected EventType = "review.rejected"
	EventDeliveryAttempted EventType = "delivery.attempted"
	EventDeliverySucceeded EventType = "delivery.succeeded"
	EventDeliveryFailed EventType = "delivery.failed"
	EventSubmissionFinalized EventType = "submission.finalized"
	EventSubmissionCancelled EventType = "submission.cancelled"
	EventSubmissionExpired EventType = "submission.expired"
	EventHandoffLinkIssued EventType = "handoff.link_issued"
	EventHandoffResumed EventType = "handoff.resumed"
)

// IntakeEvent is one immutable, versioned entry in a submission's history.
// Version is per-submission, starts at 1, and is strictly increasing with no
// gaps; the event store and the in-record log must agree on it.
type IntakeEvent struct {
	EventID string `json:"eventId"`
	Type EventType `json:"type"`
	SubmissionID string `json:"submissionId"`
	Timestamp time.Time `json:"ts"`
	Actor Actor `json:"actor"`
	State State `json:"state"`
	Payload map[string]any `json:"payload,omitempty"`
	Version int `json:"version"`
}

// FieldUpdatedPayload is the per-field diff carried by field.updated.
type FieldUpdatedPayload struct {
	Field string `json:"field"`
	OldValue any `json:"oldValue,omitempty"`
	NewValue any `json:"newValue"`
}

// ToPayload flattens a typed payload into the map carried by IntakeEvent.
func (p FieldUpdatedPayload) ToPayload() map[string]any {
	return map[string]any{"field": p.Field, "oldValue": p.OldValue, "newValue": p.NewValue}
}

// DeliveryEventPayload is carried by delivery.attempted/succeeded/failed.
type DeliveryEventPayload struct {
	DeliveryID string `json:"deliveryId"`
	DestinationURL string `json:"destinationUrl"`
	Attempt int `json:"attempt"`
	StatusCode int `json:"statusCode,omitempty"`
	Error string `json:"error,omitempty"`
}

func (p DeliveryEventPayload) ToPayload() map[string]any {
	return map[string]any{
		"deliveryId": p.DeliveryID,
		"destinationUrl": p.DestinationURL,
		"attempt": p.Attempt,
		"statusCode": p.StatusCode,
		"error": p.Error,
	}
}

// ValidationFailedPayload is carried by validation.failed.
type ValidationFailedPayload struct {
	Errors []map[string]string `json:"errors"`
}

func (p ValidationFailedPayload) ToPayload() map[string]any {
	return map[string]any{"errors": p.Errors}
}

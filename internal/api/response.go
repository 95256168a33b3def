package api

import (
	"time"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/submission"
)

// submissionResponse is the success-carrier shape for every endpoint that
// returns a submission snapshot.
type submissionResponse struct {
	OK bool `json:"ok"`
	SubmissionID string `json:"submissionId"`
	IntakeID string `json:"intakeId"`
	State domain.State `json:"state"`
	ResumeToken string `json:"resumeToken,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	FieldAttribution map[string]domain.Actor `json:"fieldAttribution,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Schema *domain.FieldSchema `json:"schema,omitempty"`
}

func renderView(view *submission.View) submissionResponse {
	return submissionResponse{
		OK: true,
		SubmissionID: view.ID,
		IntakeID: view.IntakeID,
		State: view.State,
		ResumeToken: view.ResumeToken,
		Fields: view.Fields,
		FieldAttribution: view.FieldAttribution,
		ExpiresAt: view.ExpiresAt,
		Schema: view.Schema,
	}
}

// validationResponse carries the result of a standalone validate call,
// which may succeed with field errors rather than raising one.
type validationResponse struct {
	OK bool `json:"ok"`
	Valid bool `json:"valid"`
	Errors []fieldErrorDTO `json:"errors,omitempty"`
	submissionResponse
}

type fieldErrorDTO struct {
	Field string `json:"field"`
	Message string `json:"message"`
	Code string `json:"code"`
}

type constraintsDTO struct {
	MaxSize int64 `json:"maxSize,omitempty"`
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	MaxCount int `json:"maxCount,omitempty"`
}

type uploadRequestResponse struct {
	OK bool `json:"ok"`
	UploadID string `json:"uploadId"`
	Method string `json:"method"`
	URL string `json:"url"`
	ExpiresInMs int64 `json:"expiresInMs"`
	Constraints constraintsDTO `json:"constraints"`
}

type eventDTO struct {
	EventID string `json:"eventId"`
	Type domain.EventType `json:"type"`
	SubmissionID string `json:"submissionId"`
	Timestamp time.Time `json:"ts"`
	Actor domain.Actor `json:"actor"`
	State domain.State `json:"state"`
	Payload map[string]any `json:"payload,omitempty"`
	Version int `json:"version"`
}

func renderEvent(e *domain.IntakeEvent) eventDTO {
	return eventDTO{
		EventID: e.EventID,
		Type: e.Type,
		SubmissionID: e.SubmissionID,
		Timestamp: e.Timestamp,
		Actor: e.Actor,
		State: e.State,
		Payload: e.Payload,
		Version: e.Version,
	}
}

type eventsResponse struct {
	OK bool `json:"ok"`
	Events []eventDTO `json:"events"`
	Total int `json:"total"`
}

type handoffResponse struct {
	OK bool `json:"ok"`
	URL string `json:"url"`
	submissionResponse
}

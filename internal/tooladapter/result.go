package tooladapter

import (
	"time"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/upload"
)

// Result is the tool-protocol success shape. Error is populated (with OK
// left true) only for the needs_approval discriminated result: the
// submission was mutated successfully but now awaits review, which is a
// fact the caller needs, not a failure to route around.
type Result struct {
	OK bool `json:"ok"`
	SubmissionID string `json:"submissionId,omitempty"`
	IntakeID string `json:"intakeId,omitempty"`
	State string `json:"state,omitempty"`
	ResumeToken string `json:"resumeToken,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	FieldAttribution map[string]domain.Actor `json:"fieldAttribution,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Schema *domain.FieldSchema `json:"schema,omitempty"`
	Errors []apperrors.FieldError `json:"errors,omitempty"`
	Error *apperrors.Flat `json:"error,omitempty"`

	UploadID string `json:"uploadId,omitempty"`
	Method string `json:"method,omitempty"`
	URL string `json:"url,omitempty"`
	ExpiresInMs int64 `json:"expiresInMs,omitempty"`
	Constraints *upload.Constraints `json:"constraints,omitempty"`
}

func fromView(view *submission.View) *Result {
	return &Result{
		OK: true,
		SubmissionID: view.ID,
		IntakeID: view.IntakeID,
		State: string(view.State),
		ResumeToken: view.ResumeToken,
		Fields: view.Fields,
		FieldAttribution: view.FieldAttribution,
		ExpiresAt: view.ExpiresAt,
		Schema: view.Schema,
	}
}

func fromUploadRequest(r *upload.RequestResult) *Result {
	return &Result{
		OK: true,
		UploadID: r.UploadID,
		Method: r.Method,
		URL: r.URL,
		ExpiresInMs: r.ExpiresInMs,
		Constraints: &r.Constraints,
	}
}

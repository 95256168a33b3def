package upload

import (
	"context"
	"fmt"
	"time"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/idgen"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/validate"
)

// SubmissionAccessor is the negotiator's dependency on the submission
// manager: resolving a resume token to a view, and the two upload-specific
// mutation operations.
type SubmissionAccessor interface {
	GetByResumeToken(ctx context.Context, token string) (*submission.View, error)
	RequestUpload(ctx context.Context, submissionID, resumeToken string, actor domain.Actor, rec domain.UploadRecord) (*submission.View, error)
	ConfirmUpload(ctx context.Context, submissionID, resumeToken, uploadID string, actor domain.Actor, status domain.UploadStatus, downloadURL, errMsg string) (*submission.View, error)
}

// RequestResult is the negotiator's response to requestUpload.
type RequestResult struct {
	UploadID string
	Method string
	URL string
	ExpiresInMs int64
	Constraints Constraints
}

// Negotiator implements requestUpload/confirmUpload against a
// pluggable storage Backend.
type Negotiator struct {
	submissions SubmissionAccessor
	registry *intake.Registry
	backend Backend
	urlTTL time.Duration
}

// NewNegotiator wires the negotiator. backend may be nil, in which case
// every requestUpload and confirmUpload call fails with invalid.
func NewNegotiator(submissions SubmissionAccessor, registry *intake.Registry, backend Backend, urlTTL time.Duration) *Negotiator {
	return &Negotiator{submissions: submissions, registry: registry, backend: backend, urlTTL: urlTTL}
}

// RequestUpload implements requestUpload({submissionId, resumeToken, field, filename, mimeType, sizeBytes, actor}).
func (n *Negotiator) RequestUpload(ctx context.Context, submissionID, resumeToken, field, filename, mimeType string, sizeBytes int64, actor domain.Actor) (*RequestResult, error) {
	if n.backend == nil {
		return nil, apperrors.Invalid("no storage backend configured for uploads", nil)
	}

	view, err := n.preflight(ctx, submissionID, resumeToken)
	if err != nil {
		return nil, err
	}

	def, err := n.registry.Get(view.IntakeID)
	if err != nil {
		return nil, err
	}
	fieldSchema := validate.LookupFieldSchema(def.Schema, field)
	if fieldSchema == nil || fieldSchema.Type != "file" {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("field %q is not declared as a file field", field))
	}

	constraints := Constraints{MaxSize: sizeBytes, AllowedTypes: []string{mimeType}, MaxCount: 1}
	if fieldSchema.MaxSize > 0 {
		constraints.MaxSize = fieldSchema.MaxSize
	}
	if len(fieldSchema.AllowedTypes) > 0 {
		constraints.AllowedTypes = fieldSchema.AllowedTypes
	}
	if fieldSchema.MaxCount > 0 {
		constraints.MaxCount = fieldSchema.MaxCount
	}

	generated, err := n.backend.GenerateUploadURL(ctx, GenerateUploadURLParams{
		IntakeID: view.IntakeID, SubmissionID: submissionID, FieldPath: field,
		Filename: filename, MimeType: mimeType, Constraints: constraints,
	})
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if generated.UploadID == "" {
		generated.UploadID = idgen.NewUploadID()
	}

	if _, err := n.submissions.RequestUpload(ctx, submissionID, resumeToken, actor, domain.UploadRecord{
		UploadID: generated.UploadID, Field: field, Filename: filename, MimeType: mimeType, SizeBytes: sizeBytes, URL: generated.URL,
	}); err != nil {
		return nil, err
	}

	return &RequestResult{
		UploadID: generated.UploadID,
		Method: generated.Method,
		URL: generated.URL,
		ExpiresInMs: generated.ExpiresAt.Sub(timeNow()).Milliseconds(),
		Constraints: constraints,
	}, nil
}

// ConfirmUpload implements confirmUpload({submissionId, resumeToken, uploadId, actor}).
func (n *Negotiator) ConfirmUpload(ctx context.Context, submissionID, resumeToken, uploadID string, actor domain.Actor) (*submission.View, error) {
	if n.backend == nil {
		return nil, apperrors.Invalid("no storage backend configured for uploads", nil)
	}
	if _, err := n.preflight(ctx, submissionID, resumeToken); err != nil {
		return nil, err
	}

	result, err := n.backend.VerifyUpload(ctx, uploadID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}

	switch result.Status {
	case VerifyCompleted:
		downloadURL, err := n.backend.GenerateDownloadURL(ctx, uploadID)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		return n.submissions.ConfirmUpload(ctx, submissionID, resumeToken, uploadID, actor, domain.UploadCompleted, downloadURL, "")
	case VerifyFailed:
		return n.submissions.ConfirmUpload(ctx, submissionID, resumeToken, uploadID, actor, domain.UploadFailed, "", result.Error)
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("upload %q has not finished yet", uploadID))
	}
}

func (n *Negotiator) preflight(ctx context.Context, submissionID, resumeToken string) (*submission.View, error) {
	view, err := n.submissions.GetByResumeToken(ctx, resumeToken)
	if err != nil {
		return nil, err
	}
	if view.ID != submissionID {
		return nil, apperrors.InvalidResumeToken("resume token does not match this submission")
	}
	return view, nil
}

var timeNow = time.Now

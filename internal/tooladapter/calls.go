package tooladapter

import (
	"context"

	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/validate"
)

func (a *Adapter) callCreate(ctx context.Context, intakeID string, args map[string]any) (*Result, error) {
	actor, err := requireActor(args)
	if err != nil {
		return nil, err
	}
	fields, err := getFields(args, "fields")
	if err != nil {
		return nil, err
	}
	idempotencyKey, err := getString(args, "idempotencyKey")
	if err != nil {
		return nil, err
	}
	tenantID, err := getString(args, "tenantId")
	if err != nil {
		return nil, err
	}

	view, err := a.submissions.Create(ctx, intakeID, actor, fields, idempotencyKey, tenantID)
	if err != nil {
		return nil, err
	}
	return fromView(view), nil
}

func (a *Adapter) callSet(ctx context.Context, args map[string]any) (*Result, error) {
	submissionID, err := requireString(args, "submissionId")
	if err != nil {
		return nil, err
	}
	resumeToken, err := requireString(args, "resumeToken")
	if err != nil {
		return nil, err
	}
	actor, err := requireActor(args)
	if err != nil {
		return nil, err
	}
	fields, err := getFields(args, "fields")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.InvalidRequest(`argument "fields" is required and must be non-empty`)
	}

	view, err := a.submissions.SetFields(ctx, submissionID, resumeToken, actor, fields)
	if err != nil {
		return nil, err
	}
	return fromView(view), nil
}

func (a *Adapter) callValidate(ctx context.Context, args map[string]any) (*Result, error) {
	submissionID, err := requireString(args, "submissionId")
	if err != nil {
		return nil, err
	}
	resumeToken, err := requireString(args, "resumeToken")
	if err != nil {
		return nil, err
	}

	view, fieldErrs, err := a.submissions.Validate(ctx, submissionID, resumeToken)
	if err != nil {
		return nil, err
	}
	result := fromView(view)
	if len(fieldErrs) > 0 {
		result.Errors = validate.ToAppErrorFields(fieldErrs)
	}
	return result, nil
}

func (a *Adapter) callSubmit(ctx context.Context, args map[string]any) (*Result, error) {
	submissionID, err := requireString(args, "submissionId")
	if err != nil {
		return nil, err
	}
	resumeToken, err := requireString(args, "resumeToken")
	if err != nil {
		return nil, err
	}
	actor, err := requireActor(args)
	if err != nil {
		return nil, err
	}

	view, err := a.submissions.Submit(ctx, submissionID, resumeToken, actor)
	if view == nil {
		return nil, err
	}
	// view != nil with a needs_approval error is the discriminated "submitted,
	// but awaiting review" result; Call() attaches it to the result
	// rather than discarding the view.
	return fromView(view), err
}

func (a *Adapter) callRequestUpload(ctx context.Context, args map[string]any) (*Result, error) {
	if a.uploads == nil {
		return nil, apperrors.InvalidRequest("no storage backend configured for uploads")
	}
	submissionID, err := requireString(args, "submissionId")
	if err != nil {
		return nil, err
	}
	resumeToken, err := requireString(args, "resumeToken")
	if err != nil {
		return nil, err
	}
	actor, err := requireActor(args)
	if err != nil {
		return nil, err
	}
	field, err := requireString(args, "field")
	if err != nil {
		return nil, err
	}
	filename, err := requireString(args, "filename")
	if err != nil {
		return nil, err
	}
	mimeType, err := requireString(args, "mimeType")
	if err != nil {
		return nil, err
	}
	sizeBytes, err := getInt64(args, "sizeBytes")
	if err != nil {
		return nil, err
	}

	result, err := a.uploads.RequestUpload(ctx, submissionID, resumeToken, field, filename, mimeType, sizeBytes, actor)
	if err != nil {
		return nil, err
	}
	return fromUploadRequest(result), nil
}

func (a *Adapter) callConfirmUpload(ctx context.Context, args map[string]any) (*Result, error) {
	if a.uploads == nil {
		return nil, apperrors.InvalidRequest("no storage backend configured for uploads")
	}
	submissionID, err := requireString(args, "submissionId")
	if err != nil {
		return nil, err
	}
	resumeToken, err := requireString(args, "resumeToken")
	if err != nil {
		return nil, err
	}
	actor, err := requireActor(args)
	if err != nil {
		return nil, err
	}
	uploadID, err := requireString(args, "uploadId")
	if err != nil {
		return nil, err
	}

	view, err := a.uploads.ConfirmUpload(ctx, submissionID, resumeToken, uploadID, actor)
	if err != nil {
		return nil, err
	}
	return fromView(view), nil
}

// Package tooladapter exposes every registered
// intake as six named tool-protocol operations, {intakeId}_{op}, routed to
// the submission manager and upload negotiator. It mirrors the name/handler
// dispatch table idiom used by the ecosystem's MCP tool servers (a Tools
// registry keyed by name, handlers returning (any, error)), generalized
// from a fixed tool set to one generated per registered intake.
package tooladapter

import (
	"context"
	"fmt"
	"strings"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/upload"
)

// Operation names recognized as the suffix of a tool name.
const (
	OpCreate = "create"
	OpSet = "set"
	OpValidate = "validate"
	OpSubmit = "submit"
	OpRequestUpload = "requestUpload"
	OpConfirmUpload = "confirmUpload"
)

var operations = []string{OpCreate, OpSet, OpValidate, OpSubmit, OpRequestUpload, OpConfirmUpload}

var operationDescriptions = map[string]string{
	OpCreate: "Create a new submission for this intake.",
	OpSet: "Set or update fields on an existing submission.",
	OpValidate: "Validate the current fields against the intake schema without submitting.",
	OpSubmit: "Submit the submission, advancing it to review or delivery.",
	OpRequestUpload: "Negotiate a storage URL to upload a file field.",
	OpConfirmUpload: "Confirm a previously requested upload has finished.",
}

// Tool describes one callable operation, in the shape the ecosystem's
// tool-protocol listings expect: a name, a human description, and a JSON
// Schema for its arguments.
type Tool struct {
	Name string `json:"name"`
	Description string `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Adapter exposes every registered intake as {intakeId}_{op} tools, routing
// calls to the submission manager (and the upload negotiator for the two
// upload operations). Its only job is input-shape validation, routing, and
// response serialization — all domain logic lives in submission.Manager.
type Adapter struct {
	registry *intake.Registry
	submissions *submission.Manager
	uploads *upload.Negotiator
}

// NewAdapter wires the adapter. uploads may be nil, in which case the two
// upload operations always fail with invalid_request.
func NewAdapter(registry *intake.Registry, submissions *submission.Manager, uploads *upload.Negotiator) *Adapter {
	return &Adapter{registry: registry, submissions: submissions, uploads: uploads}
}

// Tools lists one Tool per (registered intake, operation) pair.
func (a *Adapter) Tools() []Tool {
	var tools []Tool
	for _, id := range a.registry.ListIDs() {
		def, err := a.registry.Get(id)
		if err != nil {
			continue
		}
		for _, op := range operations {
			tools = append(tools, Tool{
				Name: id + "_" + op,
				Description: fmt.Sprintf("%s (intake: %s)", operationDescriptions[op], id),
				InputSchema: inputSchemaFor(op, def),
			})
		}
	}
	return tools
}

func inputSchemaFor(op string, def *domain.IntakeDefinition) map[string]any {
	base := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"submissionId": map[string]any{"type": "string"},
			"resumeToken": map[string]any{"type": "string"},
			"actor": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind": map[string]any{"type": "string", "enum": []string{"agent", "human", "system"}},
					"id": map[string]any{"type": "string"},
				},
				"required": []string{"kind", "id"},
			},
		},
	}
	props := base["properties"].(map[string]any)

	switch op {
	case OpCreate:
		props["fields"] = map[string]any{"type": "object"}
		props["idempotencyKey"] = map[string]any{"type": "string"}
		props["tenantId"] = map[string]any{"type": "string"}
		base["required"] = []string{"actor"}
	case OpSet:
		props["fields"] = map[string]any{"type": "object"}
		base["required"] = []string{"submissionId", "resumeToken", "actor", "fields"}
	case OpValidate:
		base["required"] = []string{"submissionId", "resumeToken"}
	case OpSubmit:
		base["required"] = []string{"submissionId", "resumeToken", "actor"}
	case OpRequestUpload:
		props["field"] = map[string]any{"type": "string"}
		props["filename"] = map[string]any{"type": "string"}
		props["mimeType"] = map[string]any{"type": "string"}
		props["sizeBytes"] = map[string]any{"type": "integer"}
		base["required"] = []string{"submissionId", "resumeToken", "actor", "field", "filename", "mimeType", "sizeBytes"}
	case OpConfirmUpload:
		props["uploadId"] = map[string]any{"type": "string"}
		base["required"] = []string{"submissionId", "resumeToken", "actor", "uploadId"}
	}
	if def != nil && def.Schema != nil && (op == OpCreate || op == OpSet) {
		props["fieldsSchema"] = schemaPreview(def.Schema)
	}
	return base
}

// schemaPreview renders the intake's declared field shape so a tool caller
// can discover what "fields" accepts, without obligating it to re-implement
// full JSON Schema validation itself.
func schemaPreview(schema *domain.FieldSchema) map[string]any {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	return map[string]any{"type": schema.Type, "knownFields": names}
}

// Call parses name as {intakeId}_{op} — splitting on the last underscore —
// and routes to the matching operation. An invalid operation suffix, an
// unknown intakeId, or an invalid argument shape is returned as a flat
// error (apperrors.ToFlat); a successful call returns a *Result.
func (a *Adapter) Call(ctx context.Context, name string, args map[string]any) (*Result, *apperrors.Flat) {
	intakeID, op, ok := parseName(name)
	if !ok {
		return nil, apperrors.ToFlat(apperrors.InvalidRequest(fmt.Sprintf("tool name %q is not of the form {intakeId}_{op}", name)))
	}
	if !a.registry.Has(intakeID) {
		return nil, apperrors.ToFlat(apperrors.NotFound(fmt.Sprintf("intake %q not registered", intakeID)))
	}

	var (
		result *Result
		err error
	)
	switch op {
	case OpCreate:
		result, err = a.callCreate(ctx, intakeID, args)
	case OpSet:
		result, err = a.callSet(ctx, args)
	case OpValidate:
		result, err = a.callValidate(ctx, args)
	case OpSubmit:
		result, err = a.callSubmit(ctx, args)
	case OpRequestUpload:
		result, err = a.callRequestUpload(ctx, args)
	case OpConfirmUpload:
		result, err = a.callConfirmUpload(ctx, args)
	default:
		return nil, apperrors.ToFlat(apperrors.InvalidRequest(fmt.Sprintf("unknown operation %q", op)))
	}

	if err != nil {
		appErr, isApp := apperrors.As(err)
		if !isApp {
			appErr = apperrors.Internal(err)
		}
		if appErr.Code == apperrors.TypeNeedsApproval && result != nil {
			result.Error = apperrors.ToFlat(appErr)
			return result, nil
		}
		return nil, apperrors.ToFlat(appErr)
	}
	return result, nil
}

// parseName splits name on its LAST underscore: the intakeId may itself
// contain underscores (per its registration pattern), but none of the six
// operation suffixes do.
func parseName(name string) (intakeID, op string, ok bool) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

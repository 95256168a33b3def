package tooladapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/upload"
)

func testIntake() *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: "application",
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Required: []string{"name"},
			Properties: map[string]*domain.FieldSchema{
				"name": {Type: "string"},
				"resume": {Type: "file"},
			},
		},
		Destination: &domain.Destination{URL: "https://example.test/hooks/application"},
	}
}

func newHarness(t *testing.T) *Adapter {
	t.Helper()
	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(testIntake()))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()
	mgr := submission.NewManager(reg, store, events, dispatcher, nil, submission.DefaultConfig())

	dir := filepath.Join(os.TempDir(), "formbridge-tooladapter-test")
	backend, err := upload.NewFilesystemBackend(dir, time.Minute)
	require.NoError(t, err)
	neg := upload.NewNegotiator(mgr, reg, backend, time.Minute)

	return NewAdapter(reg, mgr, neg)
}

func actorArg() map[string]any {
	return map[string]any{"kind": "human", "id": "u1"}
}

func TestAdapter_Tools_ListsSixPerIntake(t *testing.T) {
	a := newHarness(t)
	tools := a.Tools()
	assert.Len(t, tools, 6)
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Name] = true
	}
	assert.True(t, names["application_create"])
	assert.True(t, names["application_confirmUpload"])
}

func TestAdapter_Call_CreateThenSet(t *testing.T) {
	a := newHarness(t)

	created, flatErr := a.Call(context.Background(), "application_create", map[string]any{"actor": actorArg()})
	require.Nil(t, flatErr)
	require.True(t, created.OK)
	assert.NotEmpty(t, created.SubmissionID)

	updated, flatErr := a.Call(context.Background(), "application_set", map[string]any{
		"submissionId": created.SubmissionID,
		"resumeToken": created.ResumeToken,
		"actor": actorArg(),
		"fields": map[string]any{"name": "Ada"},
	})
	require.Nil(t, flatErr)
	assert.Equal(t, "Ada", updated.Fields["name"])
}

func TestAdapter_Call_UnknownIntakeReturnsFlatError(t *testing.T) {
	a := newHarness(t)
	_, flatErr := a.Call(context.Background(), "nonexistent_create", map[string]any{"actor": actorArg()})
	require.NotNil(t, flatErr)
	assert.Equal(t, "not_found", string(flatErr.Type))
}

func TestAdapter_Call_MalformedNameReturnsFlatError(t *testing.T) {
	a := newHarness(t)
	_, flatErr := a.Call(context.Background(), "noop", map[string]any{})
	require.NotNil(t, flatErr)
	assert.Equal(t, "invalid_request", string(flatErr.Type))
}

func TestAdapter_Call_InvalidOperationSuffixReturnsFlatError(t *testing.T) {
	a := newHarness(t)
	_, flatErr := a.Call(context.Background(), "application_frobnicate", map[string]any{"actor": actorArg()})
	require.NotNil(t, flatErr)
	assert.Equal(t, "invalid_request", string(flatErr.Type))
}

func TestAdapter_Call_SetMissingFieldsReturnsFlatError(t *testing.T) {
	a := newHarness(t)
	created, flatErr := a.Call(context.Background(), "application_create", map[string]any{"actor": actorArg()})
	require.Nil(t, flatErr)

	_, flatErr = a.Call(context.Background(), "application_set", map[string]any{
		"submissionId": created.SubmissionID,
		"resumeToken": created.ResumeToken,
		"actor": actorArg(),
	})
	require.NotNil(t, flatErr)
	assert.Equal(t, "invalid_request", string(flatErr.Type))
}

func TestAdapter_Call_ValidateSurfacesFieldErrors(t *testing.T) {
	a := newHarness(t)
	created, flatErr := a.Call(context.Background(), "application_create", map[string]any{"actor": actorArg()})
	require.Nil(t, flatErr)

	result, flatErr := a.Call(context.Background(), "application_validate", map[string]any{
		"submissionId": created.SubmissionID,
		"resumeToken": created.ResumeToken,
	})
	require.Nil(t, flatErr)
	assert.NotEmpty(t, result.Errors)
}

func TestAdapter_Call_RequestUploadRejectsNonFileField(t *testing.T) {
	a := newHarness(t)
	created, flatErr := a.Call(context.Background(), "application_create", map[string]any{"actor": actorArg()})
	require.Nil(t, flatErr)

	_, flatErr = a.Call(context.Background(), "application_requestUpload", map[string]any{
		"submissionId": created.SubmissionID,
		"resumeToken": created.ResumeToken,
		"actor": actorArg(),
		"field": "name",
		"filename": "x.txt",
		"mimeType": "text/plain",
		"sizeBytes": 10,
	})
	require.NotNil(t, flatErr)
}

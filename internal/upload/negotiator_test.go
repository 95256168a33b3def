package upload

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
)

func fileIntake(id string) *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: id,
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Properties: map[string]*domain.FieldSchema{
				"resume": {Type: "file", MaxSize: 1024, AllowedTypes: []string{"application/pdf"}},
				"name": {Type: "string"},
			},
		},
		Destination: &domain.Destination{URL: "https://example.test/hooks/" + id},
	}
}

func newUploadHarness(t *testing.T) (*Negotiator, *submission.Manager, *submission.View) {
	t.Helper()
	reg := intake.NewRegistry()
	require.NoError(t, reg.Register(fileIntake("application")))
	store := submission.NewMemoryStore()
	events := eventstore.NewMemoryStore()
	dispatcher := domain.NewEventDispatcher()
	mgr := submission.NewManager(reg, store, events, dispatcher, nil, submission.DefaultConfig())

	dir := filepath.Join(os.TempDir(), "formbridge-upload-test")
	backend, err := NewFilesystemBackend(dir, time.Minute)
	require.NoError(t, err)

	neg := NewNegotiator(mgr, reg, backend, time.Minute)

	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}
	view, err := mgr.Create(context.Background(), "application", actor, nil, "", "")
	require.NoError(t, err)

	return neg, mgr, view
}

func TestNegotiator_RequestUpload_RejectsNonFileField(t *testing.T) {
	neg, _, view := newUploadHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	_, err := neg.RequestUpload(context.Background(), view.ID, view.ResumeToken, "name", "x.txt", "text/plain", 10, actor)
	assert.Error(t, err)
}

func TestNegotiator_RequestUpload_Succeeds(t *testing.T) {
	neg, _, view := newUploadHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	result, err := neg.RequestUpload(context.Background(), view.ID, view.ResumeToken, "resume", "cv.pdf", "application/pdf", 100, actor)
	require.NoError(t, err)
	assert.NotEmpty(t, result.UploadID)
	assert.Equal(t, "PUT", result.Method)
	assert.Equal(t, int64(1024), result.Constraints.MaxSize)
}

func TestNegotiator_ConfirmUpload_PendingUntilFileWritten(t *testing.T) {
	neg, mgr, view := newUploadHarness(t)
	actor := domain.Actor{Kind: domain.ActorHuman, ID: "u1"}

	result, err := neg.RequestUpload(context.Background(), view.ID, view.ResumeToken, "resume", "cv.pdf", "application/pdf", 100, actor)
	require.NoError(t, err)

	current, err := mgr.GetByID(context.Background(), view.ID, "")
	require.NoError(t, err)

	_, err = neg.ConfirmUpload(context.Background(), view.ID, current.ResumeToken, result.UploadID, actor)
	assert.Error(t, err) // file not actually written yet -> still pending

	path := result.URL[len("file://"):]
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("pdf-bytes"), 0o644))
	defer os.RemoveAll(filepath.Dir(path))

	current, err = mgr.GetByID(context.Background(), view.ID, "")
	require.NoError(t, err)
	confirmed, err := neg.ConfirmUpload(context.Background(), view.ID, current.ResumeToken, result.UploadID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.EventUploadCompleted, confirmed.Events[len(confirmed.Events)-1].Type)
}

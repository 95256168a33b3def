package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
)

func sampleDef(id string) *domain.IntakeDefinition {
	return &domain.IntakeDefinition{
		ID: id,
		Version: "1.0.0",
		Schema: &domain.FieldSchema{
			Type: "object",
			Properties: map[string]*domain.FieldSchema{"legal_name": {Type: "string"}},
		},
		Destination: &domain.Destination{URL: "https://example.com/hook"},
	}
}

func TestRegister_AndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sampleDef("vendor_onboarding")))

	def, err := r.Get("vendor_onboarding")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", def.Version)
	assert.True(t, r.Has("vendor_onboarding"))
	assert.Contains(t, r.ListIDs(), "vendor_onboarding")
}

func TestGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegister_RejectsBadID(t *testing.T) {
	r := NewRegistry()
	def := sampleDef("Bad-ID")
	assert.Error(t, r.Register(def))
}

func TestRegister_RejectsBadVersion(t *testing.T) {
	r := NewRegistry()
	def := sampleDef("ok_id")
	def.Version = "not-semver"
	assert.Error(t, r.Register(def))
}

func TestRegister_RequiresSchemaAndDestination(t *testing.T) {
	r := NewRegistry()

	missingSchema := sampleDef("ok_id")
	missingSchema.Schema = nil
	assert.Error(t, r.Register(missingSchema))

	missingDest := sampleDef("ok_id")
	missingDest.Destination = nil
	assert.Error(t, r.Register(missingDest))
}

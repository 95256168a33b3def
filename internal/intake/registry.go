// Package intake implements the in-memory intake-definition registry:
// a process-wide catalog populated at startup from already-normalized
// definitions.
package intake

import (
	"fmt"
	"regexp"
	"sync"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// Registry is the process-wide intake-definition catalog.
type Registry struct {
	mu sync.RWMutex
	defs map[string]*domain.IntakeDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*domain.IntakeDefinition)}
}

// Register validates and adds a definition. Re-registering an existing ID
// replaces it — registries are populated at startup, not mutated under
// request traffic.
func (r *Registry) Register(def *domain.IntakeDefinition) error {
	if err := validate(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

// Get looks up a definition by ID.
func (r *Registry) Get(id string) (*domain.IntakeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("intake %q not registered", id))
	}
	return def, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[id]
	return ok
}

// ListIDs returns every registered intake ID, in no particular order.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	return ids
}

func validate(def *domain.IntakeDefinition) error {
	if !idPattern.MatchString(def.ID) {
		return apperrors.InvalidRequest(fmt.Sprintf("intake id %q must match ^[a-z][a-z0-9_]*$", def.ID))
	}
	if !semverPattern.MatchString(def.Version) {
		return apperrors.InvalidRequest(fmt.Sprintf("intake %q version %q must be semantic", def.ID, def.Version))
	}
	if def.Schema == nil {
		return apperrors.InvalidRequest(fmt.Sprintf("intake %q missing schema", def.ID))
	}
	if def.Destination == nil {
		return apperrors.InvalidRequest(fmt.Sprintf("intake %q missing destination", def.ID))
	}
	return nil
}

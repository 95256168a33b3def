// Package submission implements the primary record store ,
// the state machine , and the submission manager orchestrating
// create/setFields/validate/submit/get/handoff .
package submission

import (
	"context"
	"sort"
	"sync"
	"time"

	"formbridge.dev/formbridge/internal/domain"
)

// Store is the primary submission record store: indexed by id, by current
// resume token, and by (intakeId, idempotencyKey).
type Store interface {
	// Save atomically upserts record, rotating the resume-token index entry
	// from oldToken (if non-empty and different) to record.ResumeToken, and
	// updating the (intakeId, idempotencyKey) index when IdempotencyKey is
	// set.
	Save(ctx context.Context, record *domain.Submission, oldToken string) error
	GetByID(ctx context.Context, id string, tenantID string) (*domain.Submission, error)
	GetByResumeToken(ctx context.Context, token string) (*domain.Submission, error)
	GetByIdempotencyKey(ctx context.Context, tenantID, intakeID, key string) (*domain.Submission, error)
	// ListExpiring returns non-terminal submissions whose ExpiresAt is
	// before `now`.
	ListExpiring(ctx context.Context, now time.Time) ([]*domain.Submission, error)
	// EvictTerminal removes terminal-state submissions oldest-first by
	// UpdatedAt until the store holds at most maxEntries records.
	EvictTerminal(ctx context.Context, maxEntries int) (evicted int, err error)
	// Counts returns the incremental state→count map.
	Counts(ctx context.Context) (map[domain.State]int, error)
}

// MemoryStore is the default in-process Store, guarded by a single mutex —
// submissions and their indexes are small enough in practice that per-
// record striping would add complexity without a measurable benefit; the
// manager layer, not this store, is responsible for serializing writes to
// the *same* submission (see internal/submission/locks.go).
type MemoryStore struct {
	mu sync.RWMutex

	byID map[string]*domain.Submission
	byToken map[string]string // token -> id
	byIdempotency map[string]string // tenantId|intakeId|key -> id
	stateCounts map[domain.State]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*domain.Submission),
		byToken: make(map[string]string),
		byIdempotency: make(map[string]string),
		stateCounts: make(map[domain.State]int),
	}
}

func idempotencyKey(tenantID, intakeID, key string) string {
	return tenantID + "|" + intakeID + "|" + key
}

func (s *MemoryStore) Save(ctx context.Context, record *domain.Submission, oldToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byID[record.ID]; ok {
		s.stateCounts[prior.State]--
	}
	s.stateCounts[record.State]++

	if oldToken != "" && oldToken != record.ResumeToken {
		delete(s.byToken, oldToken)
	}
	s.byToken[record.ResumeToken] = record.ID

	if record.IdempotencyKey != "" {
		s.byIdempotency[idempotencyKey(record.TenantID, record.IntakeID, record.IdempotencyKey)] = record.ID
	}

	s.byID[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string, tenantID string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetByResumeToken(ctx context.Context, token string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.byID[id]
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetByIdempotencyKey(ctx context.Context, tenantID, intakeID, key string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdempotency[idempotencyKey(tenantID, intakeID, key)]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.byID[id]
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) ListExpiring(ctx context.Context, now time.Time) ([]*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Submission
	for _, rec := range s.byID {
		if rec.State.Terminal() {
			continue
		}
		if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) EvictTerminal(ctx context.Context, maxEntries int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byID) <= maxEntries {
		return 0, nil
	}

	var terminal []*domain.Submission
	for _, rec := range s.byID {
		if rec.State.Terminal() {
			terminal = append(terminal, rec)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := len(s.byID) - maxEntries
	evicted := 0
	for _, rec := range terminal {
		if evicted >= toRemove {
			break
		}
		delete(s.byID, rec.ID)
		delete(s.byToken, rec.ResumeToken)
		if rec.IdempotencyKey != "" {
			delete(s.byIdempotency, idempotencyKey(rec.TenantID, rec.IntakeID, rec.IdempotencyKey))
		}
		s.stateCounts[rec.State]--
		evicted++
	}
	return evicted, nil
}

func (s *MemoryStore) Counts(ctx context.Context) (map[domain.State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.State]int, len(s.stateCounts))
	for k, v := range s.stateCounts {
		out[k] = v
	}
	return out, nil
}

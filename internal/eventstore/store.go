// Package eventstore implements the append-only per-submission event log:
// monotonic version, no duplicate event IDs, filtered and paginated reads,
// and a separate count path so pagination metadata never requires
// re-reading all events.
package eventstore

import (
	"context"
	"time"

	"formbridge.dev/formbridge/internal/domain"
)

// Filter narrows a Query/Count call.
type Filter struct {
	Types []domain.EventType
	ActorKind domain.ActorKind
	Since *time.Time
	Until *time.Time
	Limit int
	Offset int
}

func (f Filter) matches(e *domain.IntakeEvent) bool {
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	if f.ActorKind != "" && e.Actor.Kind != f.ActorKind {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

func containsType(types []domain.EventType, t domain.EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// Store is the durable event log backing one submission's history. It is
// distinct from — and a durable mirror of — the inline event log a
// Submission carries for single-read retrieval.
type Store interface {
	// Append adds an event to submissionId's log. Implementations must
	// reject a version that is not exactly len(existing)+1, and must reject
	// a duplicate eventId.
	Append(ctx context.Context, submissionID string, event *domain.IntakeEvent) error
	// Query returns events for submissionId matching filter, oldest-first
	// (i.e. by version ascending), honoring Limit/Offset.
	Query(ctx context.Context, submissionID string, filter Filter) ([]*domain.IntakeEvent, error)
	// Count answers how many events for submissionId match filter, without
	// requiring the caller to page through Query first.
	Count(ctx context.Context, submissionID string, filter Filter) (int, error)
}

// Redact returns a copy of event with any resume-token-shaped payload
// entries removed, safe to expose on a read path.
func Redact(event *domain.IntakeEvent) *domain.IntakeEvent {
	clone := *event
	if event.Payload != nil {
		clone.Payload = make(map[string]any, len(event.Payload))
		for k, v := range event.Payload {
			if k == "resumeToken" || k == "token" {
				continue
			}
			clone.Payload[k] = v
		}
	}
	return &clone
}

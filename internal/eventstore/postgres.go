package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"formbridge.dev/formbridge/internal/domain"
)

// PostgresStore is the durable alternative to MemoryStore, selected when
// configuration's storageBackend is "postgres". It lazily creates its table
// on first use rather than requiring an external migration step, mirroring
// the pattern used elsewhere in this codebase for small auxiliary tables.
type PostgresStore struct {
	pool *pgxpool.Pool
	initOnce sync.Once
	initErr error
}

// NewPostgresStore wraps an existing pgx pool. The pool's lifecycle (close)
// is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	s.initOnce.Do(func() {
		_, s.initErr = s.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS intake_events (
				submission_id TEXT NOT NULL,
				event_id TEXT NOT NULL,
				version INTEGER NOT NULL,
				event_type TEXT NOT NULL,
				actor_kind TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				state TEXT NOT NULL,
				payload JSONB NOT NULL DEFAULT '{}',
				ts TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (submission_id, version),
				UNIQUE (event_id)
			)
		`)
	})
	return s.initErr
}

func (s *PostgresStore) Append(ctx context.Context, submissionID string, event *domain.IntakeEvent) error {
	if err := s.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure intake_events table: %w", err)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO intake_events (submission_id, event_id, version, event_type, actor_kind, actor_id, state, payload, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, submissionID, event.EventID, event.Version, string(event.Type), string(event.Actor.Kind), event.Actor.ID, string(event.State), payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert intake event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, submissionID string, filter Filter) ([]*domain.IntakeEvent, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		return []*domain.IntakeEvent{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_id, version, event_type, actor_kind, actor_id, state, payload, ts
		FROM intake_events
		WHERE submission_id = $1
		 AND ($2::text[] IS NULL OR event_type = ANY($2))
		 AND ($3::timestamptz IS NULL OR ts >= $3)
		 AND ($4::timestamptz IS NULL OR ts <= $4)
		 AND ($7::text = '' OR actor_kind = $7)
		ORDER BY version ASC
		OFFSET $5
		LIMIT $6
	`, submissionID, typesOrNil(filter.Types), filter.Since, filter.Until, filter.Offset, limitOrAll(filter.Limit), string(filter.ActorKind))
	if err != nil {
		return nil, fmt.Errorf("query intake events: %w", err)
	}
	defer rows.Close()

	var out []*domain.IntakeEvent
	for rows.Next() {
		var e domain.IntakeEvent
		var eventType, actorKind, state string
		var payload []byte
		if err := rows.Scan(&e.EventID, &e.Version, &eventType, &actorKind, &e.Actor.ID, &state, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan intake event: %w", err)
		}
		e.Type = domain.EventType(eventType)
		e.Actor.Kind = domain.ActorKind(actorKind)
		e.State = domain.State(state)
		e.SubmissionID = submissionID
		_ = json.Unmarshal(payload, &e.Payload)
		out = append(out, Redact(&e))
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, submissionID string, filter Filter) (int, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM intake_events
		WHERE submission_id = $1
		 AND ($2::text[] IS NULL OR event_type = ANY($2))
		 AND ($3::timestamptz IS NULL OR ts >= $3)
		 AND ($4::timestamptz IS NULL OR ts <= $4)
		 AND ($5::text = '' OR actor_kind = $5)
	`, submissionID, typesOrNil(filter.Types), filter.Since, filter.Until, string(filter.ActorKind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count intake events: %w", err)
	}
	return count, nil
}

func typesOrNil(types []domain.EventType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func limitOrAll(limit int) int {
	if limit < 0 {
		return 1 << 30
	}
	return limit
}

package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"formbridge.dev/formbridge/internal/domain"
)

// PostgresStore is the durable Store alternative, selected when
// configuration's storageBackend is "postgres". Event history for a
// submission still lives in eventstore.PostgresStore; this table holds only
// the current record plus its resume-token and idempotency indexes.
type PostgresStore struct {
	pool *pgxpool.Pool
	initOnce sync.Once
	initErr error
}

// NewPostgresStore wraps an existing pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	s.initOnce.Do(func() {
		_, s.initErr = s.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS submissions (
				id TEXT PRIMARY KEY,
				intake_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL DEFAULT '',
				state TEXT NOT NULL,
				resume_token TEXT NOT NULL,
				idempotency_key TEXT NOT NULL DEFAULT '',
				record JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ
			);
			CREATE UNIQUE INDEX IF NOT EXISTS submissions_resume_token_idx ON submissions (resume_token);
			CREATE UNIQUE INDEX IF NOT EXISTS submissions_idempotency_idx ON submissions (tenant_id, intake_id, idempotency_key)
				WHERE idempotency_key <> '';
		`)
	})
	return s.initErr
}

func (s *PostgresStore) Save(ctx context.Context, record *domain.Submission, oldToken string) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	// A single upsert keyed on primary id atomically replaces the old
	// resume-token index entry because resume_token carries a unique index
	// and the row for this id is rewritten in one statement: a concurrent
	// reader observes either the fully-old row (old token valid) or the
	// fully-new row (new token valid), never a mix.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (id, intake_id, tenant_id, state, resume_token, idempotency_key, record, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			resume_token = EXCLUDED.resume_token,
			idempotency_key = EXCLUDED.idempotency_key,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, record.ID, record.IntakeID, record.TenantID, string(record.State), record.ResumeToken,
		record.IdempotencyKey, raw, record.CreatedAt, record.UpdatedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*domain.Submission, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query submission: %w", err)
	}
	var rec domain.Submission
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal submission: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string, tenantID string) (*domain.Submission, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.scanOne(ctx, `SELECT record FROM submissions WHERE id = $1`, id)
	}
	return s.scanOne(ctx, `SELECT record FROM submissions WHERE id = $1 AND tenant_id = $2`, id, tenantID)
}

func (s *PostgresStore) GetByResumeToken(ctx context.Context, token string) (*domain.Submission, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s.scanOne(ctx, `SELECT record FROM submissions WHERE resume_token = $1`, token)
}

func (s *PostgresStore) GetByIdempotencyKey(ctx context.Context, tenantID, intakeID, key string) (*domain.Submission, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s.scanOne(ctx, `SELECT record FROM submissions WHERE tenant_id = $1 AND intake_id = $2 AND idempotency_key = $3`, tenantID, intakeID, key)
}

func (s *PostgresStore) ListExpiring(ctx context.Context, now time.Time) ([]*domain.Submission, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM submissions
		WHERE expires_at IS NOT NULL AND expires_at < $1
		 AND state NOT IN ('finalized', 'rejected', 'cancelled', 'expired')
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expiring submissions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec domain.Submission
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EvictTerminal(ctx context.Context, maxEntries int) (int, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM submissions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	if total <= maxEntries {
		return 0, nil
	}
	toRemove := total - maxEntries

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM submissions WHERE id IN (
			SELECT id FROM submissions
			WHERE state IN ('finalized', 'rejected', 'cancelled', 'expired')
			ORDER BY updated_at ASC
			LIMIT $1
		)
	`, toRemove)
	if err != nil {
		return 0, fmt.Errorf("evict terminal submissions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Counts(ctx context.Context) (map[domain.State]int, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT state, count(*) FROM submissions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count submissions by state: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		out[domain.State(state)] = count
	}
	return out, rows.Err()
}

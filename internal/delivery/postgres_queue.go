package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue is the durable Queue alternative, selected when
// storageBackend is "postgres". Delivery bookkeeping (attempts, status,
// next retry time) lives here so a restart never loses a record the way an
// in-memory MemoryQueue would.
type PostgresQueue struct {
	pool *pgxpool.Pool
	initOnce sync.Once
	initErr error
}

// NewPostgresQueue wraps an existing pgx pool.
func NewPostgresQueue(pool *pgxpool.Pool) *PostgresQueue {
	return &PostgresQueue{pool: pool}
}

func (q *PostgresQueue) ensureTable(ctx context.Context) error {
	q.initOnce.Do(func() {
		_, q.initErr = q.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS delivery_records (
				delivery_id TEXT PRIMARY KEY,
				submission_id TEXT NOT NULL,
				intake_id TEXT NOT NULL,
				destination_url TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL,
				last_attempt_at TIMESTAMPTZ,
				next_retry_at TIMESTAMPTZ,
				status_code INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS delivery_records_submission_idx ON delivery_records (submission_id);
			CREATE INDEX IF NOT EXISTS delivery_records_retry_idx ON delivery_records (status, next_retry_at);
		`)
	})
	return q.initErr
}

func (q *PostgresQueue) Enqueue(ctx context.Context, rec *Record) error {
	if err := q.ensureTable(ctx); err != nil {
		return err
	}
	_, err := q.pool.Exec(ctx, `
		INSERT INTO delivery_records
			(delivery_id, submission_id, intake_id, destination_url, status, attempts, created_at, last_attempt_at, next_retry_at, status_code, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.DeliveryID, rec.SubmissionID, rec.IntakeID, rec.DestinationURL, string(rec.Status), rec.Attempts,
		rec.CreatedAt, rec.LastAttemptAt, rec.NextRetryAt, rec.StatusCode, rec.Error)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

func (q *PostgresQueue) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var status string
	if err := row.Scan(&rec.DeliveryID, &rec.SubmissionID, &rec.IntakeID, &rec.DestinationURL, &status,
		&rec.Attempts, &rec.CreatedAt, &rec.LastAttemptAt, &rec.NextRetryAt, &rec.StatusCode, &rec.Error); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan delivery record: %w", err)
	}
	rec.Status = Status(status)
	return &rec, nil
}

const selectDeliveryColumns = `delivery_id, submission_id, intake_id, destination_url, status, attempts, created_at, last_attempt_at, next_retry_at, status_code, error`

func (q *PostgresQueue) Get(ctx context.Context, deliveryID string) (*Record, error) {
	if err := q.ensureTable(ctx); err != nil {
		return nil, err
	}
	row := q.pool.QueryRow(ctx, `SELECT `+selectDeliveryColumns+` FROM delivery_records WHERE delivery_id = $1`, deliveryID)
	return q.scanRecord(row)
}

func (q *PostgresQueue) GetBySubmission(ctx context.Context, submissionID string) ([]*Record, error) {
	if err := q.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := q.pool.Query(ctx, `SELECT `+selectDeliveryColumns+` FROM delivery_records WHERE submission_id = $1 ORDER BY created_at ASC`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("query delivery records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := q.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q *PostgresQueue) Update(ctx context.Context, rec *Record) error {
	if err := q.ensureTable(ctx); err != nil {
		return err
	}
	tag, err := q.pool.Exec(ctx, `
		UPDATE delivery_records SET
			status = $2, attempts = $3, last_attempt_at = $4, next_retry_at = $5, status_code = $6, error = $7
		WHERE delivery_id = $1
	`, rec.DeliveryID, string(rec.Status), rec.Attempts, rec.LastAttemptAt, rec.NextRetryAt, rec.StatusCode, rec.Error)
	if err != nil {
		return fmt.Errorf("update delivery record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PostgresQueue) GetPendingRetries(ctx context.Context, now time.Time) ([]*Record, error) {
	if err := q.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := q.pool.Query(ctx, `
		SELECT `+selectDeliveryColumns+` FROM delivery_records
		WHERE status = $1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		ORDER BY next_retry_at ASC
	`, string(StatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("query pending deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := q.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q *PostgresQueue) Stats(ctx context.Context) (map[Status]int, error) {
	if err := q.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := q.pool.Query(ctx, `SELECT status, count(*) FROM delivery_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count delivery records: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int, 3)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[Status(status)] = count
	}
	return out, rows.Err()
}

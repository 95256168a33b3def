package delivery

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// NewRiverClient builds the durable delivery worker's River client: one
// worker (DeliveryJobWorker) on the default queue, backed by the same
// pgxpool the Postgres-backed stores use. The caller starts the client and
// wires it into an Engine via Engine.SetRiverClient. A river_job migration
// (rivermigrate) must have run once against the target database before this
// client is started; FormBridge does not run it automatically, mirroring
// how the rest of this codebase leaves schema migration to an operator step
// rather than an implicit runtime side effect.
func NewRiverClient(pool *pgxpool.Pool, engine *Engine, maxWorkers int) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewDeliveryJobWorker(engine))

	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
}

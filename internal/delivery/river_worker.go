package delivery

import (
	"context"

	"github.com/riverqueue/river"
)

// DeliveryJobArgs is the River job payload for the durable
// alternative delivery dispatcher, selected when storageBackend=postgres is
// paired with durableQueue=true so an in-flight retry survives a process
// restart without waiting on the in-process scheduler's next tick.
type DeliveryJobArgs struct {
	DeliveryID string `json:"delivery_id"`
}

// Kind identifies this job type in the river_job table.
func (DeliveryJobArgs) Kind() string { return "delivery_attempt" }

// InsertOpts caps River's own retry machinery at one attempt per insert:
// the engine's RetryPolicy already governs backoff by scheduling a fresh
// job once NextRetryAt passes, so letting River retry independently would
// double-attempt a failed delivery.
func (DeliveryJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// DeliveryJobWorker runs one delivery attempt through the same Engine.attempt
// path the in-process worker pool uses, so dry-run rendering, HMAC signing,
// and submission finalization behave identically under either dispatcher.
type DeliveryJobWorker struct {
	river.WorkerDefaults[DeliveryJobArgs]
	engine *Engine
}

// NewDeliveryJobWorker creates a river worker bound to engine.
func NewDeliveryJobWorker(engine *Engine) *DeliveryJobWorker {
	return &DeliveryJobWorker{engine: engine}
}

// Work performs the delivery attempt. It never returns an error: Engine.attempt
// already records failure/retry state on the queue record itself, and
// surfacing an error here would additionally mark the river job attempt
// failed and trigger river's own backoff on top of the engine's.
func (w *DeliveryJobWorker) Work(ctx context.Context, job *river.Job[DeliveryJobArgs]) error {
	w.engine.attempt(ctx, job.Args.DeliveryID)
	return nil
}

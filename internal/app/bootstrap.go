// Package app is the composition root: it wires the submission lifecycle
// core (registry, validator, event store, submission store, manager),
// its collaborators (approval, upload, delivery, scheduler), the tool
// adapter, and the HTTP binding into one runnable Application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/api"
	"formbridge.dev/formbridge/internal/approval"
	"formbridge.dev/formbridge/internal/authstub"
	"formbridge.dev/formbridge/internal/config"
	"formbridge.dev/formbridge/internal/delivery"
	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/intake"
	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/pkg/worker"
	"formbridge.dev/formbridge/internal/scheduler"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/tooladapter"
	"formbridge.dev/formbridge/internal/upload"
)

// Application holds every composed, long-lived dependency so Start/Shutdown
// can drive their lifecycles without the caller knowing the wiring.
type Application struct {
	Config *config.Config
	Router *gin.Engine

	Tools *tooladapter.Adapter

	pools *worker.Pools
	deliveryEngine *delivery.Engine
	expiryScheduler *scheduler.Scheduler
	pgPool *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
}

// Bootstrap builds every component named in from cfg and wires them
// together. No component here talks to another except through the
// collaborator interfaces each package already defines.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	registry := intake.NewRegistry()
	if cfg.Submission.IntakeDefinitionsDir != "" {
		if err := registry.LoadDir(cfg.Submission.IntakeDefinitionsDir); err != nil {
			logger.Warn("no intake definitions loaded from configured directory",
				zap.String("dir", cfg.Submission.IntakeDefinitionsDir), zap.Error(err))
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		DeliveryPoolSize: cfg.Worker.DeliveryPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	// A single shared pgxpool backs every Postgres-backed store and the
	// durable delivery worker, mirroring the one-pool-for-everything rule
	// the rest of this codebase already follows for its relational
	// dependencies.
	var pgPool *pgxpool.Pool
	if cfg.Submission.StorageBackend == "postgres" {
		pgPool, err = pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			pools.Shutdown()
			return nil, fmt.Errorf("connect postgres pool: %w", err)
		}
		if err := pgPool.Ping(ctx); err != nil {
			pgPool.Close()
			pools.Shutdown()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	}

	submissionStore := buildSubmissionStore(cfg, pgPool)
	eventStore := buildEventStore(cfg, pgPool)
	deliveryQueue := buildDeliveryQueue(cfg, pgPool)

	dispatcher := domain.NewEventDispatcher()

	// The submission manager and delivery engine are mutual collaborators
	// (submission.DeliveryEnqueuer / delivery.SubmissionRecorder). Build the
	// manager first with a nil enqueuer, build the engine against it, then
	// close the loop with SetDeliveryEnqueuer.
	submissionMgr := submission.NewManager(registry, submissionStore, eventStore, dispatcher, nil, submission.Config{
		TokenTTL: cfg.Submission.TokenTTL,
		BaseURL: cfg.Submission.BaseURL,
	})

	webhookClient, err := delivery.NewWebhookClient()
	if err != nil {
		pools.Shutdown()
		return nil, fmt.Errorf("init webhook client: %w", err)
	}
	deliveryEngine := delivery.NewEngine(deliveryQueue, registry, submissionStore, submissionMgr, webhookClient, pools, cfg.Delivery.RetryPolicy(), false)
	submissionMgr.SetDeliveryEnqueuer(deliveryEngine)

	// The durable delivery worker only makes sense once the
	// queue itself is durable: config.Validate already rejects
	// durableQueue=true without storageBackend=postgres, so pgPool is
	// guaranteed non-nil here.
	var riverClient *river.Client[pgx.Tx]
	if cfg.Delivery.DurableQueue {
		riverClient, err = delivery.NewRiverClient(pgPool, deliveryEngine, cfg.Worker.DeliveryPoolSize)
		if err != nil {
			pools.Shutdown()
			pgPool.Close()
			return nil, fmt.Errorf("init river client: %w", err)
		}
		deliveryEngine.SetRiverClient(riverClient)
		if err := riverClient.Start(ctx); err != nil {
			pools.Shutdown()
			pgPool.Close()
			return nil, fmt.Errorf("start river client: %w", err)
		}
	}

	approvalMgr := approval.NewManager(submissionMgr, nil)

	backend, err := upload.NewFilesystemBackend(cfg.Upload.FilesystemRoot, cfg.Upload.URLTTL)
	if err != nil {
		pools.Shutdown()
		return nil, fmt.Errorf("init upload backend: %w", err)
	}
	negotiator := upload.NewNegotiator(submissionMgr, registry, backend, cfg.Upload.URLTTL)

	toolAdapter := tooladapter.NewAdapter(registry, submissionMgr, negotiator)

	authReader := authstub.NewReader([]byte(cfg.Security.SigningSecret))
	handler := api.NewHandler(submissionMgr, approvalMgr, negotiator, eventStore)
	router := api.NewRouter(handler, authReader)

	expirySched := scheduler.New(submissionStore, submissionMgr, pools, msToDuration(cfg.Submission.ExpiryIntervalMs), cfg.Submission.MaxEntries)
	deliveryEngine.StartRetryScheduler(ctx, msToDuration(cfg.Delivery.RetryIntervalMs))

	return &Application{
		Config: cfg,
		Router: router,
		Tools: toolAdapter,
		pools: pools,
		deliveryEngine: deliveryEngine,
		expiryScheduler: expirySched,
		pgPool: pgPool,
		riverClient: riverClient,
	}, nil
}

// buildSubmissionStore returns the in-memory Store unless storageBackend is
// "postgres", in which case pool is guaranteed non-nil (Bootstrap connects
// it before calling this).
func buildSubmissionStore(cfg *config.Config, pool *pgxpool.Pool) submission.Store {
	if cfg.Submission.StorageBackend == "postgres" {
		return submission.NewPostgresStore(pool)
	}
	return submission.NewMemoryStore()
}

func buildEventStore(cfg *config.Config, pool *pgxpool.Pool) eventstore.Store {
	if cfg.Submission.StorageBackend == "postgres" {
		return eventstore.NewPostgresStore(pool)
	}
	return eventstore.NewMemoryStore()
}

func buildDeliveryQueue(cfg *config.Config, pool *pgxpool.Pool) delivery.Queue {
	if cfg.Submission.StorageBackend == "postgres" {
		return delivery.NewPostgresQueue(pool)
	}
	return delivery.NewMemoryQueue()
}

// msToDuration converts a millisecond tick interval loaded from config into
// a time.Duration. Both scheduler.New and Engine.StartRetryScheduler feed
// this straight into a time.Ticker, which panics given a non-positive
// interval, so a non-positive config value falls back to one second rather
// than being passed through.
func msToDuration(ms int64) time.Duration {
	if ms <= 0 {
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

package app

import (
	"context"

	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/pkg/logger"
)

// Start starts the background services that only make sense once the
// process is fully wired: it starts the expiry/eviction scheduler. The
// delivery retry scheduler is not started here; Bootstrap already started
// it.
func (a *Application) Start(ctx context.Context) error {
	a.expiryScheduler.Start(ctx)
	logger.Info("expiry/eviction scheduler started")
	return nil
}

// Shutdown stops every background loop and releases the worker pools.
func (a *Application) Shutdown() {
	if a.expiryScheduler != nil {
		a.expiryScheduler.Stop()
	}
	if a.deliveryEngine != nil {
		a.deliveryEngine.StopRetryScheduler()
	}
	if a.riverClient != nil {
		if err := a.riverClient.Stop(context.Background()); err != nil {
			logger.Warn("river client did not stop cleanly", zap.Error(err))
		}
	}
	if a.pools != nil {
		a.pools.Shutdown()
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	logger.Info("application shut down")
}

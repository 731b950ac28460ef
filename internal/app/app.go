// Package app wires configuration, storage, stations, and controllers into a
// running process.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/csf1lab/labmonitor/internal/log"
	"github.com/csf1lab/labmonitor/internal/managers"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.Config, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	resolver := timeconv.NewResolver(loc)

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, a.cfg.Storage.BaseDir, loc, a.logger)
	if err != nil {
		return err
	}

	// Initialize the station manager for polled instruments
	sm, err := managers.NewStationManager(ctx, &wg, a.cfg, resolver, storageManager.ReadingDistributor, a.logger)
	if err != nil {
		return err
	}
	if err := sm.StartStations(); err != nil {
		return err
	}

	// Initialize the controller manager for the HTTP surfaces
	cm, err := managers.NewControllerManager(ctx, &wg, a.cfg, storageManager.Store, resolver, loc, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	log.Infof("Application started successfully (timezone %v, storage %v)", loc, a.cfg.Storage.BaseDir)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

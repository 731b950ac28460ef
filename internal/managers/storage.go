package managers

import (
	"context"
	"sync"
	"time"

	"github.com/csf1lab/labmonitor/internal/storage"
	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/internal/types"
	"go.uber.org/zap"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines            []StorageEngine
	ReadingDistributor chan types.Reading
	Store              *csvseries.Store
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing readings to the engine
type StorageEngine struct {
	Engine storage.StorageEngineInterface
	C      chan<- types.Reading
}

// NewStorageManager creates a StorageManager wired to the partitioned CSV
// store, which is the sole storage backend: the filesystem is the only
// resource the two deployments share.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, baseDir string, loc *time.Location, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := StorageManager{
		Store: csvseries.NewStore(baseDir, loc, logger),
	}

	// Initialize our channel for passing readings to the distributor
	s.ReadingDistributor = make(chan types.Reading, 20)

	// Start our reading distributor to fan received readings out to storage
	// engines
	go s.startReadingDistributor(ctx, wg, logger)

	se := StorageEngine{Engine: s.Store}
	se.C = se.Engine.StartStorageEngine(ctx, wg)
	s.Engines = append(s.Engines, se)

	return &s, nil
}

// startReadingDistributor receives readings from stations and fans them out
// to the storage engines
func (s *StorageManager) startReadingDistributor(ctx context.Context, wg *sync.WaitGroup, logger *zap.SugaredLogger) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-s.ReadingDistributor:
			for _, e := range s.Engines {
				e.C <- r
			}
		case <-ctx.Done():
			logger.Info("shutting down reading distributor")
			return
		}
	}
}

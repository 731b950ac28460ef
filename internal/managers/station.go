package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/csf1lab/labmonitor/internal/log"
	"github.com/csf1lab/labmonitor/internal/stations"
	"github.com/csf1lab/labmonitor/internal/stations/fluke"
	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"go.uber.org/zap"
)

// StationManager creates and starts the configured instrument stations.
type StationManager struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	logger   *zap.SugaredLogger
	stations map[string]stations.Station
}

// NewStationManager creates a StationManager populated with all configured
// instrument stations
func NewStationManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, resolver *timeconv.Resolver, distributor chan types.Reading, logger *zap.SugaredLogger) (*StationManager, error) {
	sm := &StationManager{
		ctx:      ctx,
		wg:       wg,
		logger:   logger,
		stations: make(map[string]stations.Station),
	}

	for _, device := range cfg.Devices {
		station, err := createStationFromConfig(ctx, wg, device, resolver, distributor, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating station [%s]: %w", device.Name, err)
		}
		sm.stations[device.Name] = station
	}

	return sm, nil
}

// StartStations starts all configured stations.
func (m *StationManager) StartStations() error {
	for name, station := range m.stations {
		m.logger.Infof("Starting station [%v]...", name)
		if err := station.StartStation(); err != nil {
			return fmt.Errorf("failed to start station [%s]: %w", name, err)
		}
	}
	return nil
}

// createStationFromConfig creates the appropriate station based on device type
func createStationFromConfig(ctx context.Context, wg *sync.WaitGroup, device config.DeviceData, resolver *timeconv.Resolver, distributor chan types.Reading, logger *zap.SugaredLogger) (stations.Station, error) {
	switch device.Type {
	case "fluke", "fluke1620a":
		log.Infof("Initializing FLUKE thermo-hygrometer station [%v]", device.Name)
		return fluke.NewStation(ctx, wg, device, resolver, distributor, logger)
	default:
		return nil, fmt.Errorf("unknown station type: %s", device.Type)
	}
}

package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/csf1lab/labmonitor/internal/controllers/dashboard"
	"github.com/csf1lab/labmonitor/internal/controllers/ingest"
	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"go.uber.org/zap"
)

// Controller is an interface that provides standard methods for various
// controller backends
type Controller interface {
	StartController() error
}

// ControllerManager creates and starts the configured HTTP controllers.
type ControllerManager struct {
	logger      *zap.SugaredLogger
	controllers []Controller
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, store *csvseries.Store, resolver *timeconv.Resolver, loc *time.Location, logger *zap.SugaredLogger) (*ControllerManager, error) {
	cm := &ControllerManager{
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	for _, con := range cfg.Controllers {
		var controller Controller
		var err error

		switch con.Type {
		case "ingest":
			ic := config.IngestData{}
			if con.Ingest != nil {
				ic = *con.Ingest
			}
			controller, err = ingest.NewController(ctx, wg, ic, store, resolver, logger)
		case "dashboard":
			dc := config.DashboardData{}
			if con.Dashboard != nil {
				dc = *con.Dashboard
			}
			reader := csvseries.NewReader(store.BaseDir(), logger)
			controller, err = dashboard.NewController(ctx, wg, dc, reader, loc, logger)
		default:
			return nil, fmt.Errorf("unknown controller type: %s", con.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("error creating %s controller: %w", con.Type, err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

// StartControllers starts all configured controllers.
func (c *ControllerManager) StartControllers() error {
	for _, controller := range c.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

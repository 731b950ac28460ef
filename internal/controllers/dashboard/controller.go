// Package dashboard implements the read-side HTTP server: live latest
// values, plot data, span summaries, and historical CSV export over the
// partitioned CSV tree.
package dashboard

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/csf1lab/labmonitor/internal/log"
	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var (
	//go:embed assets
	content embed.FS
)

// Controller represents the dashboard server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      config.DashboardData
	reader   *csvseries.Reader
	loc      *time.Location
	logger   *zap.SugaredLogger
	Server   http.Server
	FS       fs.FS
	handlers *Handlers
}

// NewController creates a new dashboard server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, dc config.DashboardData, reader *csvseries.Reader, loc *time.Location, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		cfg:    dc,
		reader: reader,
		loc:    loc,
		logger: logger,
	}

	if ctrl.cfg.ListenAddr == "" {
		logger.Info("dashboard.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		ctrl.cfg.ListenAddr = "0.0.0.0"
	}
	if ctrl.cfg.Port == 0 {
		logger.Info("dashboard.port not provided; defaulting to 8080")
		ctrl.cfg.Port = 8080
	}

	ctrl.handlers = NewHandlers(ctrl)

	assetsFS, err := fs.Sub(fs.FS(content), "assets")
	if err != nil {
		return nil, fmt.Errorf("could not set up embedded assets: %w", err)
	}
	ctrl.FS = assetsFS

	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.cfg.ListenAddr, ctrl.cfg.Port)
	ctrl.Server.Handler = router

	return ctrl, nil
}

// StartController starts the dashboard server
func (c *Controller) StartController() error {
	log.Infof("Starting dashboard controller on %v...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("dashboard server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the dashboard server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)

	router.HandleFunc("/latest/{category}", c.handlers.GetLatest)
	router.HandleFunc("/plot/{category}", c.handlers.GetPlotData)
	router.HandleFunc("/span/{span}/{category}", c.handlers.GetSpan)
	router.HandleFunc("/export/{category}", c.handlers.ExportCSV)

	router.PathPrefix("/").Handler(http.FileServer(http.FS(c.FS)))

	return router
}

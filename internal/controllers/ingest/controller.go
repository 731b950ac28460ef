// Package ingest implements the push-path HTTP server that receives
// categorized sensor fields from the microcontroller and appends them to the
// partitioned CSV store.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/csf1lab/labmonitor/internal/log"
	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the ingest server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      config.IngestData
	store    *csvseries.Store
	resolver *timeconv.Resolver
	logger   *zap.SugaredLogger
	Server   http.Server
	handlers *Handlers
}

// NewController creates a new ingest server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, ic config.IngestData, store *csvseries.Store, resolver *timeconv.Resolver, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		cfg:      ic,
		store:    store,
		resolver: resolver,
		logger:   logger,
	}

	if ctrl.cfg.ListenAddr == "" {
		logger.Info("ingest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		ctrl.cfg.ListenAddr = "0.0.0.0"
	}
	if ctrl.cfg.Port == 0 {
		logger.Info("ingest.port not provided; defaulting to 5176")
		ctrl.cfg.Port = 5176
	}

	ctrl.handlers = NewHandlers(ctrl)

	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.cfg.ListenAddr, ctrl.cfg.Port)
	ctrl.Server.Handler = router

	return ctrl, nil
}

// StartController starts the ingest server
func (c *Controller) StartController() error {
	log.Infof("Starting ingest server controller on %v...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("ingest server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the ingest server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.requestIDMiddleware)
	router.Use(log.HTTPMiddleware)

	router.HandleFunc("/api/sensor-data", c.handlers.SaveSensorData).Methods(http.MethodPost)
	// Legacy alias kept for microcontrollers still flashed with the old
	// firmware path.
	router.HandleFunc("/phpfiles/save_val.php", c.handlers.SaveSensorData).Methods(http.MethodPost)

	router.HandleFunc("/health", c.handlers.Health).Methods(http.MethodGet)
	router.HandleFunc("/", c.handlers.Index).Methods(http.MethodGet)

	return router
}

// requestIDMiddleware tags every request with a UUID for log correlation.
func (c *Controller) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDContextKey contextKey = "request-id"

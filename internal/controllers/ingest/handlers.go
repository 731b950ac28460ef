package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
)

// Handlers contains all HTTP handlers for the ingest server
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{controller: ctrl}
}

func requestID(req *http.Request) string {
	if id, ok := req.Context().Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SaveSensorData is the main endpoint receiving microcontroller sensor data.
// One request carries both photodiode and laser fields plus an optional epoch
// timestamp, and fans out into one row per category sharing the same
// resolved instant.
func (h *Handlers) SaveSensorData(w http.ResponseWriter, req *http.Request) {
	logger := h.controller.logger.With("request_id", requestID(req))

	if err := req.ParseForm(); err != nil {
		http.Error(w, "Could not parse form body.", http.StatusBadRequest)
		return
	}
	if len(req.PostForm) == 0 {
		http.Error(w, "Request body cannot be empty.", http.StatusBadRequest)
		return
	}

	values, err := validatePushFields(req.PostForm)
	if err != nil {
		var missing *MissingFieldsError
		var invalid *InvalidValueError
		switch {
		case errors.As(err, &missing):
			logger.Warnf("rejected push: %v", err)
		case errors.As(err, &invalid):
			logger.Warnf("rejected push: %v", err)
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// An unparseable timestamp field is treated the same as an absent one:
	// both take the server-time fallback inside Resolve.
	raw := timeconv.Absent()
	if ts := req.PostForm.Get("timestamp"); ts != "" {
		if epoch, perr := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); perr == nil {
			raw = timeconv.Epoch(epoch)
		}
	}

	ct, fromDevice := h.controller.resolver.Resolve(raw, time.Now())
	if fromDevice {
		logger.Infof("using device timestamp: %s", ct.LocalString)
	} else {
		logger.Warn("using server time (device timestamp missing, invalid, or out of range)")
	}

	var failed []string
	for _, cat := range pushCategories {
		fields := make(map[string]float64, len(cat.Fields()))
		for _, name := range cat.Fields() {
			fields[name] = values[name]
		}
		if err := h.controller.store.Append(cat, ct, fields); err != nil {
			logger.Errorf("could not store %s row: %v", cat, err)
			failed = append(failed, cat.String())
		}
	}

	if len(failed) > 0 {
		msg := fmt.Sprintf("Failed to write data for: %s", strings.Join(failed, ", "))
		if len(failed) == len(pushCategories) {
			msg = "Failed to write data for all categories."
		}
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "Data saved successfully at %s", ct.LocalString)
}

// Health confirms the server is running and reports its storage location.
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":             "healthy",
		"timestamp":          time.Now().In(h.controller.resolver.Location()).Format(timeconv.LabeledLayout),
		"timezone":           h.controller.resolver.Location().String(),
		"csv_base_directory": h.controller.store.BaseDir(),
	})
}

// Index describes the service and its endpoints.
func (h *Handlers) Index(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service":  "Sensor Data Ingest Server",
		"timezone": h.controller.resolver.Location().String(),
		"categories": func() []string {
			var out []string
			for _, c := range types.Categories {
				out = append(out, c.String())
			}
			return out
		}(),
		"endpoints": map[string]string{
			"POST /api/sensor-data":       "Main endpoint for microcontroller data.",
			"POST /phpfiles/save_val.php": "Legacy compatibility endpoint.",
			"GET /health":                 "Service health check.",
			"GET /":                       "This information.",
		},
	})
}

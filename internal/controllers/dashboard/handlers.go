package dashboard

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"github.com/gorilla/mux"
)

const defaultPlotPoints = 50

// Handlers contains all HTTP handlers for the dashboard server
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{controller: ctrl}
}

func (h *Handlers) category(w http.ResponseWriter, req *http.Request) (types.Category, bool) {
	slug := mux.Vars(req)["category"]
	cat, ok := types.CategoryFromSlug(slug)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown category: %s", slug), http.StatusNotFound)
		return 0, false
	}
	return cat, true
}

// GetLatest returns the most recent valid row of a category as JSON.
func (h *Handlers) GetLatest(w http.ResponseWriter, req *http.Request) {
	cat, ok := h.category(w, req)
	if !ok {
		return
	}

	row, ok := h.controller.reader.LatestValid(cat)
	if !ok {
		http.Error(w, "no data available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rowToJSON(cat, row))
}

// GetPlotData returns the last N rows of a category as column arrays for
// charting. N defaults to 50 and is capped at 5000.
func (h *Handlers) GetPlotData(w http.ResponseWriter, req *http.Request) {
	cat, ok := h.category(w, req)
	if !ok {
		return
	}

	points := defaultPlotPoints
	if p := req.URL.Query().Get("points"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			http.Error(w, "points must be a positive integer", http.StatusBadRequest)
			return
		}
		points = n
	}
	if points > 5000 {
		points = 5000
	}

	rows := h.controller.reader.TailRows(cat, points)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rowsToColumns(cat, rows))
}

// GetSpan returns the rows of the trailing time span (e.g. /span/24h/...)
// together with per-field summary statistics.
func (h *Handlers) GetSpan(w http.ResponseWriter, req *http.Request) {
	cat, ok := h.category(w, req)
	if !ok {
		return
	}

	span, err := time.ParseDuration(mux.Vars(req)["span"])
	if err != nil || span <= 0 {
		http.Error(w, "invalid span; use a duration like 1h or 24h", http.StatusBadRequest)
		return
	}

	now := time.Now().In(h.controller.loc)
	cutoff := now.Add(-span)

	// Partition dates bound the scan; the row timestamps refine it.
	var rows []csvseries.StoredRow
	for _, row := range h.controller.reader.ReadRange(cat, cutoff, now) {
		ts, err := timeconv.ParseStored(row.Timestamp(), h.controller.loc)
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			rows = append(rows, row)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"category": cat.String(),
		"span":     span.String(),
		"data":     rowsToColumns(cat, rows),
		"summary":  summarize(cat, rows),
	})
}

// ExportCSV streams all rows of a category in an inclusive date range as one
// concatenated CSV file with a single header. Without start/end parameters it
// merges every partition.
func (h *Handlers) ExportCSV(w http.ResponseWriter, req *http.Request) {
	cat, ok := h.category(w, req)
	if !ok {
		return
	}

	start := time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)
	end := time.Now().In(h.controller.loc)

	q := req.URL.Query()
	if s := q.Get("start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = t
	}
	if e := q.Get("end"); e != "" {
		t, err := time.Parse("2006-01-02", e)
		if err != nil {
			http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end = t
	}

	rows := h.controller.reader.ReadRange(cat, start, end)

	filename := fmt.Sprintf("%s_%s_%s.csv", cat.DirName(), start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write(cat.Headers())
	for _, row := range rows {
		cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.controller.logger.Errorf("error streaming %s export: %v", cat, err)
	}
}

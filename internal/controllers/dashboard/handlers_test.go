package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"go.uber.org/zap"
)

func newTestController(t *testing.T) (*Controller, string, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("could not load Asia/Kolkata: %v", err)
	}
	baseDir := t.TempDir()
	logger := zap.NewNop().Sugar()
	reader := csvseries.NewReader(baseDir, logger)

	var wg sync.WaitGroup
	ctrl, err := NewController(context.Background(), &wg, config.DashboardData{}, reader, loc, logger)
	if err != nil {
		t.Fatalf("could not create controller: %v", err)
	}
	return ctrl, baseDir, loc
}

// writePartition lays down a partition file by hand in the on-disk layout.
func writePartition(t *testing.T, baseDir string, cat types.Category, day time.Time, rows []string) {
	t.Helper()
	dir := filepath.Join(baseDir, cat.DirName(), day.Format("January_2006"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", cat.DirName(), day.Format("2006-01-02")))
	content := strings.Join(append([]string{strings.Join(cat.Headers(), ",")}, rows...), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func tempHumidityRow(at time.Time, t1, h1, t2, h2 float64) string {
	return fmt.Sprintf("%s,%s,%.6f,%g,%g,%g,%g",
		at.Format(timeconv.LabeledLayout),
		at.UTC().Format(timeconv.LabeledLayout),
		timeconv.MJD(at.UTC()),
		t1, h1, t2, h2)
}

func get(ctrl *Controller, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(w, req)
	return w
}

func TestGetLatest(t *testing.T) {
	ctrl, baseDir, loc := newTestController(t)

	day := time.Date(2025, time.August, 30, 0, 0, 0, 0, loc)
	writePartition(t, baseDir, types.CategoryTempHumidity, day, []string{
		tempHumidityRow(day.Add(10*time.Hour), 23.1, 45, 23.2, 44),
		tempHumidityRow(day.Add(11*time.Hour), 23.3, 46, 23.4, 45),
	})

	w := get(ctrl, "/latest/temp-humidity")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if ts, _ := body["timestamp"].(string); !strings.HasPrefix(ts, "2025-08-30 11:00:00") {
		t.Errorf("timestamp = %v, want the second row", body["timestamp"])
	}
	if v, _ := body["T1"].(float64); v != 23.3 {
		t.Errorf("T1 = %v, want 23.3", body["T1"])
	}
}

func TestGetLatestUnknownCategory(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if w := get(ctrl, "/latest/voltage"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetLatestNoData(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if w := get(ctrl, "/latest/lasers"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetPlotDataHonorsPointsParam(t *testing.T) {
	ctrl, baseDir, loc := newTestController(t)

	day := time.Date(2025, time.August, 30, 0, 0, 0, 0, loc)
	var rows []string
	for i := 0; i < 10; i++ {
		rows = append(rows, tempHumidityRow(day.Add(time.Duration(i)*time.Hour), float64(20+i), 45, 23, 44))
	}
	writePartition(t, baseDir, types.CategoryTempHumidity, day, rows)

	w := get(ctrl, "/plot/temp-humidity?points=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	timestamps, _ := body["timestamp"].([]interface{})
	if len(timestamps) != 3 {
		t.Fatalf("got %d timestamps, want 3", len(timestamps))
	}
	t1, _ := body["T1"].([]interface{})
	if len(t1) != 3 || t1[2].(float64) != 29 {
		t.Errorf("T1 column = %v, want the newest three values ending in 29", t1)
	}
}

func TestGetPlotDataRejectsBadPoints(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if w := get(ctrl, "/plot/temp-humidity?points=zero"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := get(ctrl, "/plot/temp-humidity?points=-5"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetSpanFiltersAndSummarizes(t *testing.T) {
	ctrl, baseDir, loc := newTestController(t)

	now := time.Now().In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	writePartition(t, baseDir, types.CategoryTempHumidity, day, []string{
		tempHumidityRow(now.Add(-3*time.Hour), 22.0, 40, 22.1, 41),
		tempHumidityRow(now.Add(-10*time.Minute), 24.0, 48, 24.1, 47),
	})

	w := get(ctrl, "/span/1h/temp-humidity")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	var body struct {
		Category string                        `json:"category"`
		Span     string                        `json:"span"`
		Data     map[string]json.RawMessage    `json:"data"`
		Summary  map[string]map[string]float64 `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Category != "temp-humidity" || body.Span != "1h0m0s" {
		t.Errorf("category/span = %q/%q", body.Category, body.Span)
	}

	// Only the 10-minute-old row falls inside the hour.
	t1 := body.Summary["T1"]
	if t1 == nil {
		t.Fatal("summary missing T1")
	}
	if t1["count"] != 1 || t1["min"] != 24.0 || t1["max"] != 24.0 || t1["mean"] != 24.0 {
		t.Errorf("T1 summary = %v", t1)
	}
}

func TestGetSpanRejectsBadSpan(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if w := get(ctrl, "/span/yesterday/temp-humidity"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestExportCSVRangeAndHeaders(t *testing.T) {
	ctrl, baseDir, loc := newTestController(t)

	cat := types.CategoryTempHumidity
	for _, d := range []string{"2025-08-29", "2025-08-30", "2025-08-31"} {
		day, _ := time.ParseInLocation("2006-01-02", d, loc)
		writePartition(t, baseDir, cat, day, []string{
			tempHumidityRow(day.Add(12*time.Hour), 23, 45, 23, 44),
		})
	}

	w := get(ctrl, "/export/temp-humidity?start=2025-08-29&end=2025-08-30")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Temp_Humidity_data_2025-08-29_2025-08-30.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("export has %d lines, want header + 2 rows:\n%s", len(lines), w.Body.String())
	}
	if lines[0] != strings.Join(cat.Headers(), ",") {
		t.Errorf("header line = %q", lines[0])
	}
	if strings.Count(w.Body.String(), "timestamp,UTC_timestamp,MJD") != 1 {
		t.Error("export repeats the header")
	}
	if !strings.HasPrefix(lines[1], "2025-08-29") || !strings.HasPrefix(lines[2], "2025-08-30") {
		t.Errorf("unexpected row order:\n%s", w.Body.String())
	}
}

func TestExportCSVRejectsBadDates(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if w := get(ctrl, "/export/temp-humidity?start=29-08-2025"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := get(ctrl, "/export/temp-humidity?end=someday"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
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

func newTestController(t *testing.T) (*Controller, string) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("could not load Asia/Kolkata: %v", err)
	}
	baseDir := t.TempDir()
	logger := zap.NewNop().Sugar()
	store := csvseries.NewStore(baseDir, loc, logger)
	resolver := timeconv.NewResolver(loc)

	var wg sync.WaitGroup
	ctrl, err := NewController(context.Background(), &wg, config.IngestData{}, store, resolver, logger)
	if err != nil {
		t.Fatalf("could not create controller: %v", err)
	}
	return ctrl, baseDir
}

func fullForm() url.Values {
	form := url.Values{}
	for i, name := range []string{"P1", "P2", "P3", "P4", "P5"} {
		form.Set(name, []string{"0.51", "0.52", "0.53", "0.54", "0.55"}[i])
	}
	for _, name := range []string{"X1", "X2", "Y1", "Y2", "Z1", "Z2", "D1", "D2"} {
		form.Set(name, "12.5")
	}
	return form
}

func postForm(ctrl *Controller, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(w, req)
	return w
}

func readPartition(t *testing.T, baseDir string, cat types.Category) [][]string {
	t.Helper()
	pattern := filepath.Join(baseDir, cat.DirName(), "*", "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected exactly one partition for %s, found %v", cat, files)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestSaveSensorDataSuccessFansOut(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	form := fullForm()
	form.Set("timestamp", "946684800") // 2000-01-01 00:00:00 UTC

	w := postForm(ctrl, "/api/sensor-data", form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Body.String(), "Data saved successfully at 2000-01-01 05:30:00 IST") {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	photo := readPartition(t, baseDir, types.CategoryPhotodiode)
	lasers := readPartition(t, baseDir, types.CategoryLasers)
	if len(photo) != 2 || len(lasers) != 2 {
		t.Fatalf("expected one data row per category, got %d / %d records", len(photo), len(lasers))
	}

	// Both rows carry the same resolved instant, device timestamp honored.
	if photo[1][0] != "2000-01-01 05:30:00 IST" || lasers[1][0] != photo[1][0] {
		t.Errorf("timestamps differ or wrong: %q vs %q", photo[1][0], lasers[1][0])
	}
	if photo[1][3] != "0.51" {
		t.Errorf("P1 column = %q", photo[1][3])
	}
	if lasers[1][3] != "12.5" {
		t.Errorf("X1 column = %q", lasers[1][3])
	}
}

func TestSaveSensorDataMissingFieldNamesIt(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	form := fullForm()
	form.Del("P3")

	w := postForm(ctrl, "/api/sensor-data", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := strings.TrimSpace(w.Body.String())
	if body != "Missing data fields: P3" {
		t.Errorf("body = %q", body)
	}

	// A rejected request must write nothing.
	for _, cat := range pushCategories {
		if _, err := os.Stat(filepath.Join(baseDir, cat.DirName())); !os.IsNotExist(err) {
			t.Errorf("category directory %s was created for a rejected request", cat.DirName())
		}
	}
}

func TestSaveSensorDataReportsAllMissingFields(t *testing.T) {
	ctrl, _ := newTestController(t)

	form := fullForm()
	form.Del("P2")
	form.Del("Y1")
	form.Del("D2")

	w := postForm(ctrl, "/api/sensor-data", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := strings.TrimSpace(w.Body.String())
	if body != "Missing data fields: P2, Y1, D2" {
		t.Errorf("body = %q", body)
	}
}

func TestSaveSensorDataInvalidValueNamesField(t *testing.T) {
	ctrl, _ := newTestController(t)

	form := fullForm()
	form.Set("X2", "abc")

	w := postForm(ctrl, "/api/sensor-data", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "X2") {
		t.Errorf("body does not name the bad field: %q", w.Body.String())
	}
}

func TestSaveSensorDataEmptyBody(t *testing.T) {
	ctrl, _ := newTestController(t)

	w := postForm(ctrl, "/api/sensor-data", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "empty") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestSaveSensorDataPartialFailureNamesCategory(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	// A regular file squatting on the photodiode directory makes that append
	// fail while the lasers append still succeeds.
	if err := os.WriteFile(filepath.Join(baseDir, types.CategoryPhotodiode.DirName()), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := postForm(ctrl, "/api/sensor-data", fullForm())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := strings.TrimSpace(w.Body.String())
	if body != "Failed to write data for: photodiode" {
		t.Errorf("body = %q", body)
	}

	// The surviving category still got its row.
	lasers := readPartition(t, baseDir, types.CategoryLasers)
	if len(lasers) != 2 {
		t.Errorf("lasers partition has %d records, want header + 1 row", len(lasers))
	}
}

func TestSaveSensorDataTotalFailure(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	for _, cat := range pushCategories {
		if err := os.WriteFile(filepath.Join(baseDir, cat.DirName()), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := postForm(ctrl, "/api/sensor-data", fullForm())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "Failed to write data for all categories." {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestSaveSensorDataBadTimestampFallsBackToServerTime(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	form := fullForm()
	form.Set("timestamp", "not-an-epoch")

	before := time.Now()
	w := postForm(ctrl, "/api/sensor-data", form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	photo := readPartition(t, baseDir, types.CategoryPhotodiode)
	stamp, err := timeconv.ParseStored(photo[1][0], loc)
	if err != nil {
		t.Fatalf("stored timestamp %q does not parse: %v", photo[1][0], err)
	}
	if d := stamp.Sub(before); d < -5*time.Second || d > 5*time.Second {
		t.Errorf("stored timestamp %q not near server time", photo[1][0])
	}
}

func TestLegacyEndpointAlias(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	w := postForm(ctrl, "/phpfiles/save_val.php", fullForm())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if len(readPartition(t, baseDir, types.CategoryPhotodiode)) != 2 {
		t.Error("legacy endpoint did not write a photodiode row")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ctrl, baseDir := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
	if body["timezone"] != "Asia/Kolkata" {
		t.Errorf("timezone field = %q", body["timezone"])
	}
	if body["csv_base_directory"] != baseDir {
		t.Errorf("csv_base_directory = %q, want %q", body["csv_base_directory"], baseDir)
	}
}

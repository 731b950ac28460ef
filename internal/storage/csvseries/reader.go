package csvseries

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/csf1lab/labmonitor/internal/types"
	"go.uber.org/zap"
)

// StoredRow is one persisted CSV record in header column order:
// timestamp, UTC_timestamp, MJD, then the category's fields.
type StoredRow []string

// Timestamp returns the local timestamp column, zone label included.
func (r StoredRow) Timestamp() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// Reader scans the partitioned CSV tree. It shares only the directory layout
// with Store; the two never coordinate beyond the filesystem.
type Reader struct {
	baseDir string
	logger  *zap.SugaredLogger
}

// NewReader creates a Reader over the CSV tree rooted at baseDir.
func NewReader(baseDir string, logger *zap.SugaredLogger) *Reader {
	return &Reader{baseDir: baseDir, logger: logger}
}

// partitionFiles enumerates every partition file for a category across all
// month folders, sorted by basename. The fixed-width date suffix makes the
// basename order chronological regardless of month folder names.
func (r *Reader) partitionFiles(cat types.Category) []string {
	pattern := filepath.Join(r.baseDir, cat.DirName(), "*", cat.DirName()+"_*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		return nil
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files
}

// partitionDate extracts the calendar day embedded in a partition filename
// (fixed ..._YYYY-MM-DD.csv suffix).
func partitionDate(path string) (time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return time.Time{}, fmt.Errorf("no date suffix in %q", filepath.Base(path))
	}
	return time.Parse("2006-01-02", base[idx+1:])
}

// ReadRange returns all rows of the category whose partition date lies in
// [start, end] (inclusive, date-only granularity), in chronological file
// order and row order within each file. An unreadable file is skipped with a
// warning; missing directories yield an empty result, not an error.
func (r *Reader) ReadRange(cat types.Category, start, end time.Time) []StoredRow {
	startDay := civilDate(start)
	endDay := civilDate(end)

	var rows []StoredRow
	for _, f := range r.partitionFiles(cat) {
		day, err := partitionDate(f)
		if err != nil {
			r.logger.Warnf("skipping partition with unparseable name: %v", err)
			continue
		}
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		fileRows, err := readRows(f)
		if err != nil {
			r.logger.Warnf("skipping unreadable partition %s: %v", f, err)
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows
}

// Latest returns the last row of the lexicographically-last partition,
// blank timestamps included. This is the bulk-export notion of "latest".
func (r *Reader) Latest(cat types.Category) (StoredRow, bool) {
	rows, ok := r.lastPartitionRows(cat)
	if !ok || len(rows) == 0 {
		return nil, false
	}
	return rows[len(rows)-1], true
}

// LatestValid returns the last row of the newest partition whose timestamp
// column is non-blank and not a bare zone label. This is the live-display
// notion of "latest": trailing placeholder rows are skipped.
func (r *Reader) LatestValid(cat types.Category) (StoredRow, bool) {
	rows, ok := r.lastPartitionRows(cat)
	if !ok {
		return nil, false
	}
	for i := len(rows) - 1; i >= 0; i-- {
		ts := strings.TrimSpace(rows[i].Timestamp())
		if ts != "" && !strings.HasPrefix(ts, "IST") {
			return rows[i], true
		}
	}
	return nil, false
}

// TailRows returns up to n of the most recent rows for the category, walking
// partitions newest-first until enough rows are collected, returned in
// chronological order.
func (r *Reader) TailRows(cat types.Category, n int) []StoredRow {
	files := r.partitionFiles(cat)
	var rows []StoredRow
	for i := len(files) - 1; i >= 0 && len(rows) < n; i-- {
		fileRows, err := readRows(files[i])
		if err != nil {
			r.logger.Warnf("skipping unreadable partition %s: %v", files[i], err)
			continue
		}
		rows = append(fileRows, rows...)
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows
}

func (r *Reader) lastPartitionRows(cat types.Category) ([]StoredRow, bool) {
	files := r.partitionFiles(cat)
	if len(files) == 0 {
		return nil, false
	}
	last := files[len(files)-1]
	rows, err := readRows(last)
	if err != nil {
		r.logger.Warnf("could not read latest partition %s: %v", last, err)
		return nil, false
	}
	return rows, true
}

// readRows reads all data rows of one partition file, header excluded.
func readRows(path string) ([]StoredRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	// Partitions written across schema tweaks may differ in column count;
	// range reads stay lenient.
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}

	rows := make([]StoredRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, StoredRow(rec))
	}
	return rows, nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package csvseries implements the date-partitioned CSV storage layout shared
// by the polling and ingest deployments: one append-only file per category
// per calendar day, grouped into month-named folders, with the header written
// once on file creation.
package csvseries

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	"go.uber.org/zap"
)

const monthFolderLayout = "January_2006"

// Store appends readings into the partitioned CSV tree. A per-category mutex
// serializes appends so that a concurrent HTTP handler pool can never
// interleave partial lines within one file. Different categories write to
// disjoint paths and do not contend.
type Store struct {
	baseDir string
	loc     *time.Location
	logger  *zap.SugaredLogger

	// now selects the partition; overridable in tests. Partitions are chosen
	// by wall-clock write time, not by the reading's own timestamp, so a
	// late-arriving or backfilled reading lands in today's file.
	now func() time.Time

	mu map[types.Category]*sync.Mutex
}

// NewStore creates a Store rooted at baseDir, using loc for partition date
// derivation.
func NewStore(baseDir string, loc *time.Location, logger *zap.SugaredLogger) *Store {
	mu := make(map[types.Category]*sync.Mutex, len(types.Categories))
	for _, c := range types.Categories {
		mu[c] = &sync.Mutex{}
	}
	return &Store{
		baseDir: baseDir,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		mu:      mu,
	}
}

// BaseDir returns the root of the partitioned CSV tree.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// PartitionPath derives the CSV file path for a category at a given instant:
// base/<CategoryDir>/<Month_Year>/<CategoryDir>_<YYYY-MM-DD>.csv
func (s *Store) PartitionPath(cat types.Category, t time.Time) string {
	t = t.In(s.loc)
	return filepath.Join(
		s.baseDir,
		cat.DirName(),
		t.Format(monthFolderLayout),
		fmt.Sprintf("%s_%s.csv", cat.DirName(), t.Format("2006-01-02")),
	)
}

// Append writes one data row for the category into today's partition,
// creating directories and the header row on demand. Field values are written
// in the category's schema order; a field missing from the map is written as
// a blank column. Any filesystem error is returned to the caller and is never
// fatal to the writing process.
func (s *Store) Append(cat types.Category, ct timeconv.CanonicalTime, fields map[string]float64) error {
	s.mu[cat].Lock()
	defer s.mu[cat].Unlock()

	path := s.PartitionPath(cat, s.now())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create partition directory for %s: %w", cat, err)
	}

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	// O_APPEND only: the file is never truncated, and a single line is
	// written atomically per call.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open partition %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(cat.Headers()); err != nil {
			f.Close()
			return fmt.Errorf("could not write header to %s: %w", path, err)
		}
		s.logger.Infof("created new partition file: %s", path)
	}

	row := make([]string, 0, len(cat.Headers()))
	row = append(row, ct.LocalString, ct.UTCString, formatValue(ct.MJD))
	for _, name := range cat.Fields() {
		if v, ok := fields[name]; ok {
			row = append(row, formatValue(v))
		} else {
			row = append(row, "")
		}
	}

	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("could not write row to %s: %w", path, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("could not flush row to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close partition %s: %w", path, err)
	}
	return nil
}

// formatValue renders a float in its natural representation. Rounding is a
// presentation concern, not a storage concern.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

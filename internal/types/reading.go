// Package types defines the instrument data categories and the Reading value
// passed from ingestion adapters to storage.
package types

import (
	"github.com/csf1lab/labmonitor/pkg/timeconv"
)

// Category identifies one of the fixed instrument data classes. Each category
// has its own column schema and its own partition directory; two categories
// never share a CSV file.
type Category int

const (
	CategoryTempHumidity Category = iota
	CategoryPhotodiode
	CategoryLasers
)

// Categories lists all known categories in a stable order.
var Categories = []Category{CategoryTempHumidity, CategoryPhotodiode, CategoryLasers}

var categoryDirs = map[Category]string{
	CategoryTempHumidity: "Temp_Humidity_data",
	CategoryPhotodiode:   "Photodiode_data",
	CategoryLasers:       "Lasers_data",
}

var categorySlugs = map[Category]string{
	CategoryTempHumidity: "temp-humidity",
	CategoryPhotodiode:   "photodiode",
	CategoryLasers:       "lasers",
}

var categoryFields = map[Category][]string{
	CategoryTempHumidity: {"T1", "H1", "T2", "H2"},
	CategoryPhotodiode:   {"P1", "P2", "P3", "P4", "P5"},
	CategoryLasers:       {"X1", "X2", "Y1", "Y2", "Z1", "Z2", "D1", "D2"},
}

func (c Category) String() string {
	return categorySlugs[c]
}

// DirName returns the partition directory name for the category. It is also
// the filename prefix of each daily shard.
func (c Category) DirName() string {
	return categoryDirs[c]
}

// Fields returns the ordered data field names for the category.
func (c Category) Fields() []string {
	return categoryFields[c]
}

// Headers returns the full CSV header row for the category: the three time
// columns followed by the category's data fields.
func (c Category) Headers() []string {
	fields := categoryFields[c]
	headers := make([]string, 0, 3+len(fields))
	headers = append(headers, "timestamp", "UTC_timestamp", "MJD")
	return append(headers, fields...)
}

// CategoryFromSlug resolves a URL slug ("temp-humidity", "photodiode",
// "lasers") to its Category.
func CategoryFromSlug(slug string) (Category, bool) {
	for c, s := range categorySlugs {
		if s == slug {
			return c, true
		}
	}
	return 0, false
}

// Reading is one instrument observation at one instant: a category, its
// numeric field values, and the already-resolved canonical time. Readings are
// immutable once constructed and consumed exactly once by storage.
type Reading struct {
	Category Category
	Fields   map[string]float64
	Time     timeconv.CanonicalTime
}

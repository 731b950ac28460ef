package ingest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/csf1lab/labmonitor/internal/types"
)

// MissingFieldsError reports the exact set of required fields absent from a
// push request.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("Missing data fields: %s", strings.Join(e.Fields, ", "))
}

// InvalidValueError reports a field whose value does not parse as a float.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("Invalid numeric value for field %s: %q", e.Field, e.Value)
}

// pushCategories are the categories fed by a single microcontroller push, in
// write order. One request fans out into one row per category.
var pushCategories = []types.Category{types.CategoryPhotodiode, types.CategoryLasers}

// validatePushFields checks that every field required by all push categories
// is present and numeric. Validation is structural, against the static
// category schemas: all missing fields are reported together, then the first
// non-numeric value is reported.
func validatePushFields(form url.Values) (map[string]float64, error) {
	var missing []string
	for _, cat := range pushCategories {
		for _, name := range cat.Fields() {
			if !form.Has(name) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	values := make(map[string]float64)
	for _, cat := range pushCategories {
		for _, name := range cat.Fields() {
			raw := form.Get(name)
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, &InvalidValueError{Field: name, Value: raw}
			}
			values[name] = v
		}
	}
	return values, nil
}

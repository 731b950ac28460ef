package dashboard

import (
	"strconv"

	"github.com/csf1lab/labmonitor/internal/storage/csvseries"
	"github.com/csf1lab/labmonitor/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// rowToJSON converts one stored row into a JSON object keyed by column name.
// Numeric columns become numbers; blank values become null.
func rowToJSON(cat types.Category, row csvseries.StoredRow) map[string]interface{} {
	out := make(map[string]interface{})
	for i, name := range cat.Headers() {
		if i >= len(row) {
			break
		}
		if i < 2 {
			// timestamp and UTC_timestamp stay strings
			out[name] = row[i]
			continue
		}
		if v, err := strconv.ParseFloat(row[i], 64); err == nil {
			out[name] = v
		} else {
			out[name] = nil
		}
	}
	return out
}

// rowsToColumns converts rows into column arrays for charting: timestamps as
// strings, MJD and each data field as parallel numeric arrays with nulls for
// blanks.
func rowsToColumns(cat types.Category, rows []csvseries.StoredRow) map[string]interface{} {
	headers := cat.Headers()
	cols := make(map[string]interface{}, len(headers))

	timestamps := make([]string, 0, len(rows))
	for _, row := range rows {
		timestamps = append(timestamps, row.Timestamp())
	}
	cols["timestamp"] = timestamps

	for i := 2; i < len(headers); i++ {
		vals := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			if i < len(row) {
				if v, err := strconv.ParseFloat(row[i], 64); err == nil {
					vals = append(vals, v)
					continue
				}
			}
			vals = append(vals, nil)
		}
		cols[headers[i]] = vals
	}
	return cols
}

// fieldSummary holds span statistics for one data field.
type fieldSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// summarize computes min/max/mean per data field over the span, ignoring
// blank values. Fields with no valid samples are omitted.
func summarize(cat types.Category, rows []csvseries.StoredRow) map[string]fieldSummary {
	headers := cat.Headers()
	out := make(map[string]fieldSummary)

	for i := 3; i < len(headers); i++ {
		var samples []float64
		for _, row := range rows {
			if i < len(row) {
				if v, err := strconv.ParseFloat(row[i], 64); err == nil {
					samples = append(samples, v)
				}
			}
		}
		if len(samples) == 0 {
			continue
		}
		out[headers[i]] = fieldSummary{
			Count: len(samples),
			Min:   floats.Min(samples),
			Max:   floats.Max(samples),
			Mean:  stat.Mean(samples, nil),
		}
	}
	return out
}

package timeconv

import (
	"strings"
	"time"
)

// StripZoneLabel removes the cosmetic zone suffix (" IST", " UTC") from a
// stored timestamp string, leaving the bare civil form.
func StripZoneLabel(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 3 {
		return fields[0] + " " + fields[1]
	}
	return s
}

// ParseStored parses a stored timestamp column (zone label tolerated) as
// civil time in the given location.
func ParseStored(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(CivilLayout, StripZoneLabel(s), loc)
}

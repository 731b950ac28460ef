package fluke

import (
	"strconv"
	"strings"
)

// frameValues are the four channels reported by the thermo-hygrometer, in
// instrument order.
var frameValues = []string{"T1", "H1", "T2", "H2"}

// normalizeFrame extracts the four channel values from a response line. The
// meter emits either a bare comma-separated form ("23.51,45.2,23.60,44.8") or
// a unit-tagged form with at least eight comma-separated parts, where the
// values sit at indices 1, 3, 5 and 7 with "%" / "C" suffixes. Anything else
// is no-data for this cycle.
func normalizeFrame(line string) (map[string]float64, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")

	if len(parts) == 4 {
		if fields, ok := parseChannels(parts, false); ok {
			return fields, true
		}
	}
	if len(parts) >= 8 {
		return parseChannels([]string{parts[1], parts[3], parts[5], parts[7]}, true)
	}
	return nil, false
}

func parseChannels(raw []string, stripUnits bool) (map[string]float64, bool) {
	fields := make(map[string]float64, 4)
	for i, p := range raw {
		if stripUnits {
			p = strings.ReplaceAll(strings.ReplaceAll(p, "%", ""), "C", "")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		fields[frameValues[i]] = v
	}
	return fields, true
}

// Package timeconv normalizes instrument timestamps into the three time
// representations carried by every stored row: local civil time in the lab
// timezone, UTC, and Modified Julian Date.
package timeconv

import (
	"time"
)

// CivilLayout is the wire format for civil timestamps, without a zone label.
const CivilLayout = "2006-01-02 15:04:05"

// LabeledLayout appends the zone abbreviation for display ("... IST", "... UTC").
// The label is cosmetic and must be stripped before reparsing.
const LabeledLayout = "2006-01-02 15:04:05 MST"

// maxEpoch bounds accepted epoch timestamps to 9999-12-31 23:59:59 UTC.
// Anything outside [0, maxEpoch] takes the server-time fallback.
const maxEpoch = 253402300799

// CanonicalTime is the resolved, immutable representation of one instant.
type CanonicalTime struct {
	LocalString string  // civil time in the lab zone, labeled
	UTCString   string  // same instant in UTC, labeled
	MJD         float64 // Modified Julian Date, fractional-day precision
}

type rawKind int

const (
	rawAbsent rawKind = iota
	rawEpoch
	rawLocalCivil
)

// RawTimestamp is a tagged variant for the three timestamp sources a device
// can supply. The two non-absent forms are interpreted asymmetrically: an
// epoch is an absolute instant converted into the lab zone, while a civil
// string is assumed to already be lab-local and only has the zone attached.
type RawTimestamp struct {
	kind  rawKind
	epoch int64
	civil string
}

// Epoch wraps a Unix epoch (UTC seconds) timestamp.
func Epoch(sec int64) RawTimestamp {
	return RawTimestamp{kind: rawEpoch, epoch: sec}
}

// LocalCivilString wraps a "YYYY-MM-DD HH:MM:SS" string already expressed in
// the lab timezone.
func LocalCivilString(s string) RawTimestamp {
	return RawTimestamp{kind: rawLocalCivil, civil: s}
}

// Absent is the no-timestamp marker; Resolve substitutes server time.
func Absent() RawTimestamp {
	return RawTimestamp{kind: rawAbsent}
}

// Resolver converts raw device timestamps into CanonicalTime values for a
// fixed lab timezone.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a Resolver for the given lab timezone.
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{loc: loc}
}

// Location returns the resolver's lab timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve produces the canonical triple for a raw timestamp. It never fails:
// a missing, malformed, or out-of-range raw value falls back to now. The
// caller learns which branch was taken via the second return value, which is
// true when the device timestamp was used.
func (r *Resolver) Resolve(raw RawTimestamp, now time.Time) (CanonicalTime, bool) {
	local, fromDevice := r.localTime(raw, now)
	utc := local.In(time.UTC)

	return CanonicalTime{
		LocalString: local.Format(LabeledLayout),
		UTCString:   utc.Format(LabeledLayout),
		MJD:         MJD(utc),
	}, fromDevice
}

func (r *Resolver) localTime(raw RawTimestamp, now time.Time) (time.Time, bool) {
	switch raw.kind {
	case rawEpoch:
		if raw.epoch < 0 || raw.epoch > maxEpoch {
			return now.In(r.loc), false
		}
		return time.Unix(raw.epoch, 0).In(r.loc), true
	case rawLocalCivil:
		t, err := time.ParseInLocation(CivilLayout, raw.civil, r.loc)
		if err != nil {
			return now.In(r.loc), false
		}
		return t, true
	default:
		return now.In(r.loc), false
	}
}

// JulianDate computes the Julian Date from a UTC instant:
//
//	JD = 367Y - floor(7(Y + floor((M+9)/12))/4) + floor(275M/9) + D + 1721013.5
//	     + (h + m/60 + s/3600)/24
//
// All divisions use floor (toward negative infinity) semantics, which matters
// for dates before the epoch. Sub-second precision is discarded.
func JulianDate(utc time.Time) float64 {
	utc = utc.In(time.UTC)
	y := int64(utc.Year())
	m := int64(utc.Month())
	d := int64(utc.Day())

	jd := float64(367*y-floorDiv(7*(y+floorDiv(m+9, 12)), 4)+floorDiv(275*m, 9)+d) + 1721013.5
	jd += (float64(utc.Hour()) + float64(utc.Minute())/60.0 + float64(utc.Second())/3600.0) / 24.0
	return jd
}

// MJD computes the Modified Julian Date (JD - 2400000.5) from a UTC instant.
func MJD(utc time.Time) float64 {
	return JulianDate(utc) - 2400000.5
}

// floorDiv divides truncating toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

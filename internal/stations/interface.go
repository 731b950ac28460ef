// Package stations defines the interface implemented by polled instrument
// backends.
package stations

// Station is an interface that provides standard methods for various
// instrument station backends
type Station interface {
	StartStation() error
	StationName() string
}

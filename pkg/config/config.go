// Package config provides configuration loading for the lab monitor. All
// values are threaded explicitly into component constructors; nothing in this
// package is ambient state.
package config

import (
	"fmt"
	"time"
)

// ConfigProvider is the interface for configuration sources.
type ConfigProvider interface {
	LoadConfig() (*Config, error)
}

// Config is the complete configuration for one deployment. Which subsystems a
// process runs is decided entirely by which devices and controllers are
// listed, so the poll deployment and the ingest/dashboard deployment are two
// instances of the same binary with different configs, sharing only the
// storage directory.
type Config struct {
	Storage     StorageData      `yaml:"storage"`
	Devices     []DeviceData     `yaml:"devices,omitempty"`
	Controllers []ControllerData `yaml:"controllers,omitempty"`
	Logging     LoggingData      `yaml:"logging,omitempty"`
}

// StorageData locates the shared CSV directory tree and fixes the lab timezone.
type StorageData struct {
	BaseDir  string `yaml:"basedir"`
	Timezone string `yaml:"timezone,omitempty"`
}

// DeviceData describes one polled instrument.
type DeviceData struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	SerialDevice string `yaml:"serialdevice,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	Hostname     string `yaml:"hostname,omitempty"`
	Port         string `yaml:"port,omitempty"`
	PollInterval string `yaml:"poll-interval,omitempty"`
}

// PollIntervalDuration parses the device poll interval, defaulting to the
// meter's two-minute cadence.
func (d DeviceData) PollIntervalDuration() (time.Duration, error) {
	if d.PollInterval == "" {
		return 2 * time.Minute, nil
	}
	iv, err := time.ParseDuration(d.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("device [%s]: bad poll-interval %q: %w", d.Name, d.PollInterval, err)
	}
	if iv <= 0 {
		return 0, fmt.Errorf("device [%s]: poll-interval must be positive", d.Name)
	}
	return iv, nil
}

// ControllerData describes one HTTP-facing subsystem.
type ControllerData struct {
	Type      string         `yaml:"type"`
	Ingest    *IngestData    `yaml:"ingest,omitempty"`
	Dashboard *DashboardData `yaml:"dashboard,omitempty"`
}

// IngestData configures the push-path HTTP server.
type IngestData struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// DashboardData configures the read-side HTTP server.
type DashboardData struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// LoggingData configures the zap logger.
type LoggingData struct {
	Debug bool   `yaml:"debug,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Location resolves the configured lab timezone, defaulting to Asia/Kolkata.
func (c *Config) Location() (*time.Location, error) {
	name := c.Storage.Timezone
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// Validate checks the parts of the configuration every deployment needs.
func (c *Config) Validate() error {
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.basedir must be set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("every device needs a name")
		}
		if d.SerialDevice == "" && (d.Hostname == "" || d.Port == "") {
			return fmt.Errorf("device [%s] must define either a serial device or hostname+port", d.Name)
		}
		if _, err := d.PollIntervalDuration(); err != nil {
			return err
		}
	}
	return nil
}

// Package fluke implements polling of a FLUKE 1620A style thermo-hygrometer
// over a serial port or TCP.
package fluke

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/csf1lab/labmonitor/internal/stations"
	"github.com/csf1lab/labmonitor/internal/types"
	"github.com/csf1lab/labmonitor/pkg/config"
	"github.com/csf1lab/labmonitor/pkg/timeconv"
	serial "github.com/tarm/goserial"
	"go.uber.org/zap"
)

const readCommand = "READ?\r\n"

// Station polls a FLUKE meter on a fixed interval and forwards each parsed
// reading to the distributor. A failed read or unparseable frame skips the
// cycle; it never stops the loop.
type Station struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	config      config.DeviceData
	interval    time.Duration
	resolver    *timeconv.Resolver
	distributor chan<- types.Reading
	logger      *zap.SugaredLogger

	netConn      net.Conn
	rwc          io.ReadWriteCloser
	br           *bufio.Reader
	connecting   bool
	connectingMu sync.Mutex
}

// NewStation creates a new FLUKE station from its device configuration.
func NewStation(ctx context.Context, wg *sync.WaitGroup, device config.DeviceData, resolver *timeconv.Resolver, distributor chan<- types.Reading, logger *zap.SugaredLogger) (stations.Station, error) {
	if device.SerialDevice == "" && (device.Hostname == "" || device.Port == "") {
		return nil, fmt.Errorf("station [%s] must define either a serial device or hostname+port", device.Name)
	}

	interval, err := device.PollIntervalDuration()
	if err != nil {
		return nil, err
	}

	if device.Baud == 0 {
		device.Baud = 9600
	}

	return &Station{
		ctx:         ctx,
		wg:          wg,
		config:      device,
		interval:    interval,
		resolver:    resolver,
		distributor: distributor,
		logger:      logger,
	}, nil
}

func (s *Station) StationName() string {
	return s.config.Name
}

// StartStation connects to the meter and launches the polling goroutine
func (s *Station) StartStation() error {
	s.logger.Infof("Starting FLUKE station [%v], polling every %v...", s.config.Name, s.interval)

	s.connect()

	s.wg.Add(1)
	go s.pollLoop()

	return nil
}

func (s *Station) pollLoop() {
	defer s.wg.Done()

	for {
		s.pollOnce()

		select {
		case <-s.ctx.Done():
			s.logger.Infof("cancellation request received. Stopping FLUKE poller [%v]", s.config.Name)
			if s.rwc != nil {
				s.rwc.Close()
			}
			return
		case <-time.After(s.interval):
		}
	}
}

// pollOnce performs one read cycle: query the meter, normalize the frame, and
// forward a Reading. Any failure is logged as a skipped cycle.
func (s *Station) pollOnce() {
	fields, ok := s.readFrame()
	if !ok {
		s.logger.Warnf("station [%v]: no valid data this cycle", s.config.Name)
		return
	}

	// The meter has no clock of its own; the reader attaches the lab-local
	// civil time at read time, which downstream treats as the
	// device-reported timestamp.
	now := time.Now()
	deviceStamp := now.In(s.resolver.Location()).Format(timeconv.CivilLayout)
	ct, _ := s.resolver.Resolve(timeconv.LocalCivilString(deviceStamp), now)

	r := types.Reading{
		Category: types.CategoryTempHumidity,
		Fields:   fields,
		Time:     ct,
	}

	s.logger.Debugf("FLUKE [%s] sending reading to distributor: T1=%.2f H1=%.1f T2=%.2f H2=%.1f",
		s.config.Name, fields["T1"], fields["H1"], fields["T2"], fields["H2"])

	select {
	case s.distributor <- r:
	case <-s.ctx.Done():
	}
}

// readFrame sends the READ? query and parses one response line. Transport
// errors trigger a reconnect and count as no-data for this cycle.
func (s *Station) readFrame() (map[string]float64, bool) {
	if s.rwc == nil {
		s.connect()
		if s.rwc == nil {
			return nil, false
		}
	}

	if s.netConn != nil {
		s.netConn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	if _, err := s.rwc.Write([]byte(readCommand)); err != nil {
		s.logger.Errorf("station [%v]: write failed: %v", s.config.Name, err)
		s.reconnect()
		return nil, false
	}

	line, err := s.br.ReadString('\n')
	if err != nil && line == "" {
		s.logger.Errorf("station [%v]: read failed: %v", s.config.Name, err)
		s.reconnect()
		return nil, false
	}

	fields, ok := normalizeFrame(line)
	if !ok {
		s.logger.Warnf("station [%v]: could not normalize frame: %q", s.config.Name, line)
		return nil, false
	}
	return fields, true
}

func (s *Station) reconnect() {
	if s.rwc != nil {
		s.rwc.Close()
		s.rwc = nil
	}
	s.netConn = nil
	s.connect()
}

// connect opens the serial or network transport, retrying with ctx-aware
// sleeps until connected or cancelled.
func (s *Station) connect() {
	s.connectingMu.Lock()
	if s.connecting {
		s.connectingMu.Unlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}
	s.connecting = true
	s.connectingMu.Unlock()

	defer func() {
		s.connectingMu.Lock()
		s.connecting = false
		s.connectingMu.Unlock()
	}()

	if s.config.SerialDevice != "" {
		s.connectSerial()
	} else {
		s.connectNetwork()
	}
}

func (s *Station) connectSerial() {
	for attempt := 1; attempt <= 3; attempt++ {
		sc := &serial.Config{Name: s.config.SerialDevice, Baud: s.config.Baud}
		s.logger.Infof("attempting to open serial port %s at %d baud (attempt %d/3)", s.config.SerialDevice, s.config.Baud, attempt)

		rwc, err := serial.OpenPort(sc)
		if err == nil {
			s.logger.Infof("connected to %v", s.config.SerialDevice)
			s.rwc = rwc
			s.br = bufio.NewReader(s.rwc)
			return
		}

		s.logger.Errorf("failed to open serial port %s: %v", s.config.SerialDevice, err)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
	s.logger.Errorf("could not open %s; will retry on the next poll cycle", s.config.SerialDevice)
}

func (s *Station) connectNetwork() {
	console := fmt.Sprint(s.config.Hostname, ":", s.config.Port)
	for attempt := 1; attempt <= 3; attempt++ {
		s.logger.Infof("connecting to %v (attempt %d/3)", console, attempt)

		conn, err := net.DialTimeout("tcp", console, 10*time.Second)
		if err == nil {
			s.netConn = conn
			s.rwc = io.ReadWriteCloser(conn)
			s.br = bufio.NewReader(s.rwc)
			return
		}

		s.logger.Errorf("could not connect to %v: %v", console, err)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
	s.logger.Errorf("could not connect to %v; will retry on the next poll cycle", console)
}

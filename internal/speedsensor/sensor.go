// Package speedsensor feeds the measured vehicle speed from a doppler radar
// on a serial port into the car status hub.
package speedsensor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/banshee-data/carstatus/internal/monitoring"
	"github.com/banshee-data/carstatus/internal/units"
)

var logf = monitoring.Prefixed("speedsensor")

// SpeedSink receives speed readings. *carstatus.Hub satisfies it.
type SpeedSink interface {
	SetCarSpeed(speed float64)
}

// Sensor reads newline-delimited radar output and forwards each speed
// reading to a SpeedSink.
type Sensor struct {
	port  io.ReadCloser
	sink  SpeedSink
	units string

	readings atomic.Uint64
	skipped  atomic.Uint64
	invalid  atomic.Uint64
}

// New wraps an already open port. Speeds are converted from m/s to
// speedUnits before being stored.
func New(port io.ReadCloser, sink SpeedSink, speedUnits string) *Sensor {
	return &Sensor{port: port, sink: sink, units: speedUnits}
}

// Open opens the serial device at path and wraps it in a Sensor.
func Open(path string, opts PortOptions, sink SpeedSink, speedUnits string) (*Sensor, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	return New(port, sink, speedUnits), nil
}

// ParseSpeed extracts a speed in m/s from one radar line. It accepts JSON
// lines carrying a "speed" field and legacy "uptime,magnitude,speed" CSV
// lines. ok is false for lines that carry no speed (config echoes, object
// reports); err is set when a speed line is malformed.
func ParseSpeed(line string) (speed float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false, nil
	}

	if strings.HasPrefix(line, "{") {
		var raw struct {
			Speed *float64 `json:"speed"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return 0, false, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
		if raw.Speed == nil {
			return 0, false, nil
		}
		return *raw.Speed, true, nil
	}

	segments := strings.Split(line, ",")
	if len(segments) != 3 {
		return 0, false, nil
	}
	speed, err = strconv.ParseFloat(strings.TrimSpace(segments[2]), 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse speed: %w", err)
	}
	return speed, true, nil
}

func (s *Sensor) handleLine(line string) {
	mps, ok, err := ParseSpeed(line)
	if err != nil {
		s.invalid.Add(1)
		logf("skipping malformed line %q: %v", line, err)
		return
	}
	if !ok {
		s.skipped.Add(1)
		return
	}

	// Direction is encoded in the sign; only the magnitude matters here.
	s.sink.SetCarSpeed(units.ConvertSpeed(math.Abs(mps), s.units))
	s.readings.Add(1)
}

// Monitor reads lines until ctx is cancelled or the port reaches end of
// stream. It returns ctx.Err() on cancellation, the read error if the port
// fails, and nil on a clean end of stream.
//
// Cancellation does not interrupt a read in progress: the reader goroutine
// stays blocked on the port until data arrives or Close is called. Callers
// must Close the sensor after Monitor returns to release it.
func (s *Sensor) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs on its own goroutine so cancellation is
	// observed even while the port is idle.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			s.handleLine(line)
		}
	}
}

// Stats returns how many lines produced a reading, carried no speed, and
// failed to parse.
func (s *Sensor) Stats() (readings, skipped, invalid uint64) {
	return s.readings.Load(), s.skipped.Load(), s.invalid.Load()
}

// Close closes the underlying port, which also unblocks a pending Monitor read.
func (s *Sensor) Close() error {
	return s.port.Close()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/carstatus/internal/carstatus"
	"github.com/banshee-data/carstatus/internal/config"
	"github.com/banshee-data/carstatus/internal/monitoring"
	"github.com/banshee-data/carstatus/internal/speedsensor"
	"github.com/banshee-data/carstatus/internal/telemetry"
	"github.com/banshee-data/carstatus/internal/timeutil"
	"github.com/banshee-data/carstatus/internal/units"
)

var logf = monitoring.Prefixed("sim")

// Producer cadences of the synthetic pipeline.
const (
	captureInterval = 50 * time.Millisecond
	detectInterval  = 100 * time.Millisecond
	speedInterval   = 100 * time.Millisecond
	frameWidth      = 1280
	frameHeight     = 720
)

type simOptions struct {
	Clock        timeutil.Clock
	PollInterval time.Duration
	// SerialPort selects the live speed sensor; empty uses speedProfile.
	SerialPort string
	Port       speedsensor.PortOptions
	// Frame size of the synthetic camera; zero uses 1280x720.
	Width, Height int
}

type simulation struct {
	opts       simOptions
	clock      timeutil.Clock
	speedUnits string
	hub        *carstatus.Hub
	recorder   *telemetry.Recorder
}

func newSimulation(cfg *config.StatusConfig, opts simOptions) *simulation {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = frameWidth, frameHeight
	}

	hub := carstatus.New(carstatus.OptionsFromConfig(cfg, opts.Clock))
	rec := telemetry.NewRecorder(hub, opts.Clock, 0)
	rec.OnEvent(func(e telemetry.Event) {
		logf("advisory %s: limit=%d speed=%.1f", e.Kind, e.SpeedLimit, e.CarSpeed)
	})

	return &simulation{
		opts:       opts,
		clock:      opts.Clock,
		speedUnits: cfg.GetSpeedUnits(),
		hub:        hub,
		recorder:   rec,
	}
}

// Run starts every producer and the recorder, and blocks until ctx ends or
// one of them fails. Cancellation is a normal stop and returns nil.
func (s *simulation) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.every(ctx, captureInterval, s.captureFrame) })
	g.Go(func() error { return s.every(ctx, detectInterval, s.detectObjects) })
	g.Go(func() error { return s.every(ctx, detectInterval, s.detectLanes) })
	g.Go(func() error { return s.runSpeedSource(ctx) })
	g.Go(func() error { return s.recorder.Run(ctx, s.opts.PollInterval) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// every calls step with an increasing tick count at each interval.
func (s *simulation) every(ctx context.Context, interval time.Duration, step func(tick int)) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			step(tick)
		}
	}
}

func (s *simulation) captureFrame(tick int) {
	s.hub.SetFrame(syntheticFrame(s.opts.Width, s.opts.Height, tick))
}

func (s *simulation) detectObjects(tick int) {
	frame := s.hub.Frame()
	if frame == nil {
		return
	}
	objects := syntheticObjects(frame.Bounds(), tick)
	s.hub.SetDetectedObjects(objects)
	s.hub.ApplySignDetections(objects)
	s.hub.SetObjectDetectionTime(syntheticLatency(30*time.Millisecond, tick))
}

func (s *simulation) detectLanes(tick int) {
	frame := s.hub.Frame()
	if frame == nil {
		return
	}
	r := syntheticLanes(frame.Bounds(), tick)
	s.hub.SetLaneResult(r.Lines, r.Mask, r.Annotated, r.Reduced)
	s.hub.SetLaneDetectionTime(syntheticLatency(15*time.Millisecond, tick))
}

func (s *simulation) runSpeedSource(ctx context.Context) error {
	if s.opts.SerialPort == "" {
		start := s.clock.Now()
		return s.every(ctx, speedInterval, func(int) {
			kph := speedProfile(s.clock.Since(start))
			s.hub.SetCarSpeed(units.ConvertSpeed(units.ToMPS(kph, units.KPH), s.speedUnits))
		})
	}

	sensor, err := speedsensor.Open(s.opts.SerialPort, s.opts.Port, s.hub, s.speedUnits)
	if err != nil {
		return fmt.Errorf("speed sensor: %w", err)
	}
	defer sensor.Close()

	err = sensor.Monitor(ctx)
	readings, skipped, invalid := sensor.Stats()
	logf("speed sensor stopped: readings=%d skipped=%d invalid=%d", readings, skipped, invalid)
	return err
}

// speedProfile is a slow swell between 25 and 65 km/h with a one minute
// period.
func speedProfile(elapsed time.Duration) float64 {
	return 45 + 20*math.Sin(2*math.Pi*elapsed.Seconds()/60)
}

// syntheticLatency jitters base by up to +/-20% on a fixed pattern.
func syntheticLatency(base time.Duration, tick int) time.Duration {
	jitter := []float64{0, 0.1, -0.05, 0.2, -0.2, 0.05, -0.1}
	return time.Duration(float64(base) * (1 + jitter[tick%len(jitter)]))
}

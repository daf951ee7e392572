// Package telemetry is the polling consumer of the car status hub: it turns
// advisory snapshots into notification events and keeps a bounded history
// of samples for summaries and charts.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/banshee-data/carstatus/internal/carstatus"
	"github.com/banshee-data/carstatus/internal/timeutil"
)

// DefaultCapacity is the number of samples kept when none is given.
const DefaultCapacity = 4096

// Source is the getter surface of the hub that the recorder polls.
type Source interface {
	StartTime() time.Time
	RunID() string
	CarSpeed() float64
	MaxSpeedLimit() carstatus.SpeedLimit
	ObjectDetectionTime() time.Duration
	LaneDetectionTime() time.Duration
	DetectedObjects() []carstatus.TrafficObject
	DetectedLaneLines() []carstatus.LaneLine
}

// Sample is one poll of the hub.
type Sample struct {
	At                  time.Time
	RunID               string
	Elapsed             time.Duration
	CarSpeed            float64
	SpeedLimit          int
	OverspeedWarning    bool
	ObjectDetectionTime time.Duration
	LaneDetectionTime   time.Duration
	Objects             int
	LaneLines           int
}

// EventKind classifies a notification.
type EventKind int

const (
	// EventSpeedLimit announces a newly armed speed limit.
	EventSpeedLimit EventKind = iota
	// EventOverspeed announces an overspeed warning, first or repeated.
	EventOverspeed
	// EventExpired reports that the active limit ran out of validity.
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventSpeedLimit:
		return "speed_limit"
	case EventOverspeed:
		return "overspeed"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event is a notification the UI or audio layer should present.
type Event struct {
	At         time.Time
	Kind       EventKind
	SpeedLimit int
	CarSpeed   float64
}

// Recorder polls a Source. Each Poll is one notification opportunity in the
// sense of carstatus.SpeedAdvisory.Snapshot, so exactly one Recorder should
// poll a hub, at the cadence notifications are meant to be shown.
type Recorder struct {
	src      Source
	clock    timeutil.Clock
	capacity int

	mu        sync.Mutex
	samples   *queue.Queue
	events    []Event
	lastLimit int
	onEvent   func(Event)
}

// NewRecorder returns a recorder keeping at most capacity samples.
func NewRecorder(src Source, clock timeutil.Clock, capacity int) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		src:      src,
		clock:    clock,
		capacity: capacity,
		samples:  queue.New(),
	}
}

// OnEvent installs a callback invoked, outside the recorder lock, for each
// event produced by Poll.
func (r *Recorder) OnEvent(f func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = f
}

// Poll reads the hub once, records a sample and emits any due events.
func (r *Recorder) Poll() Sample {
	now := r.clock.Now()
	limit := r.src.MaxSpeedLimit()
	speed := r.src.CarSpeed()

	s := Sample{
		At:                  now,
		RunID:               r.src.RunID(),
		Elapsed:             now.Sub(r.src.StartTime()),
		CarSpeed:            speed,
		SpeedLimit:          limit.SpeedLimit,
		OverspeedWarning:    limit.Active() && limit.OverspeedWarning,
		ObjectDetectionTime: r.src.ObjectDetectionTime(),
		LaneDetectionTime:   r.src.LaneDetectionTime(),
		Objects:             len(r.src.DetectedObjects()),
		LaneLines:           len(r.src.DetectedLaneLines()),
	}

	// The advisory's warning flag outlives Clear and expiry; only a warning
	// against a limit in force counts, for samples and events alike.
	var due []Event
	if limit.Active() && !limit.HasNotified {
		due = append(due, Event{At: now, Kind: EventSpeedLimit, SpeedLimit: limit.SpeedLimit, CarSpeed: speed})
	}
	if limit.Active() && limit.OverspeedWarning && !limit.OverspeedWarningHasNotified {
		due = append(due, Event{At: now, Kind: EventOverspeed, SpeedLimit: limit.SpeedLimit, CarSpeed: speed})
	}

	r.mu.Lock()
	if limit.Expired() && r.lastLimit != carstatus.ExpiredSpeedLimit {
		due = append(due, Event{At: now, Kind: EventExpired, SpeedLimit: limit.SpeedLimit, CarSpeed: speed})
	}
	r.lastLimit = limit.SpeedLimit

	r.samples.Add(s)
	for r.samples.Length() > r.capacity {
		r.samples.Remove()
	}
	r.events = append(r.events, due...)
	handler := r.onEvent
	r.mu.Unlock()

	if handler != nil {
		for _, e := range due {
			handler(e)
		}
	}
	return s
}

// Run polls every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			r.Poll()
		}
	}
}

// Samples returns the retained samples, oldest first.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, r.samples.Length())
	for i := range out {
		out[i] = r.samples.Get(i).(Sample)
	}
	return out
}

// Events returns every event emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

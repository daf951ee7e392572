package carstatus

import (
	"sync"
	"time"

	"github.com/banshee-data/carstatus/internal/timeutil"
)

// ExpiredSpeedLimit is the SpeedLimit value set once a limit outlives
// MaxSpeedSignValidTime. Zero means no limit was ever set, or it was cleared.
const ExpiredSpeedLimit = -1

// AdvisoryTimings are the tunable time constants of the speed advisory.
type AdvisoryTimings struct {
	// MaxSpeedSignValidTime is how long a limit stays active after it was armed.
	MaxSpeedSignValidTime time.Duration
	// OverspeedWarningAfterTrafficSign is the grace period after a sign
	// before an overspeed warning may fire.
	OverspeedWarningAfterTrafficSign time.Duration
	// OverspeedWarningInterval is the re-notify cadence of an ongoing warning.
	OverspeedWarningInterval time.Duration
	// TimeToRenotifySameTrafficSign is the window after which a repeated
	// identical sign re-arms the advisory.
	TimeToRenotifySameTrafficSign time.Duration
}

// SpeedLimit is the state of the speed advisory, and the view returned to
// consumers by SpeedAdvisory.Snapshot.
type SpeedLimit struct {
	SpeedLimit                   int
	BeginTime                    time.Time
	HasNotified                  bool
	OverspeedWarning             bool
	OverspeedWarningHasNotified  bool
	OverspeedWarningNotifiedTime time.Time
}

// Active reports whether a speed limit is currently in force.
func (s SpeedLimit) Active() bool { return s.SpeedLimit > 0 }

// Expired reports whether the last limit ran out of validity.
func (s SpeedLimit) Expired() bool { return s.SpeedLimit == ExpiredSpeedLimit }

// SpeedAdvisory debounces speed-limit sign detections and derives overspeed
// warnings from the live car speed. All methods are safe for concurrent use.
type SpeedAdvisory struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	timings AdvisoryTimings
	state   SpeedLimit
}

// NewSpeedAdvisory returns an advisory with no active limit.
func NewSpeedAdvisory(clock timeutil.Clock, timings AdvisoryTimings) *SpeedAdvisory {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	a := &SpeedAdvisory{clock: clock, timings: timings}
	a.resetLocked(clock.Now())
	return a
}

// resetLocked restores the start-of-run state. Caller holds a.mu.
func (a *SpeedAdvisory) resetLocked(now time.Time) {
	a.state = SpeedLimit{BeginTime: now}
}

// Trigger records a (re-)detected speed-limit sign. A different value always
// re-arms the advisory; the same value re-arms only once the current limit
// has been active longer than TimeToRenotifySameTrafficSign.
func (a *SpeedAdvisory) Trigger(speed int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if speed != a.state.SpeedLimit ||
		now.Sub(a.state.BeginTime) > a.timings.TimeToRenotifySameTrafficSign {
		a.state.HasNotified = false
		a.state.SpeedLimit = speed
		a.state.BeginTime = now
		logf("max speed limit: %d", speed)
	}
}

// Clear deactivates the current limit.
func (a *SpeedAdvisory) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.HasNotified = false
	a.state.SpeedLimit = 0
	logf("end of speed limit")
}

// Snapshot advances the state machine against carSpeed and returns the
// state as it was before the notification flags were set.
//
// Every call counts as one notification opportunity: afterwards both
// HasNotified and OverspeedWarningHasNotified are true. Poll at the cadence
// notifications should be shown, not faster, or later polls in a burst
// will see the flags already set.
func (a *SpeedAdvisory) Snapshot(carSpeed float64) SpeedLimit {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	s := &a.state

	if now.Sub(s.BeginTime) > a.timings.MaxSpeedSignValidTime {
		s.SpeedLimit = ExpiredSpeedLimit
	}

	limit := float64(s.SpeedLimit)
	switch {
	case s.SpeedLimit > 0 && carSpeed > limit && !s.OverspeedWarning &&
		now.Sub(s.BeginTime) > a.timings.OverspeedWarningAfterTrafficSign:
		s.OverspeedWarning = true
		s.OverspeedWarningHasNotified = false
		s.OverspeedWarningNotifiedTime = now

	case carSpeed <= limit:
		s.OverspeedWarning = false

	case s.OverspeedWarningHasNotified &&
		now.Sub(s.OverspeedWarningNotifiedTime) > a.timings.OverspeedWarningInterval:
		s.OverspeedWarningHasNotified = false
	}

	view := *s

	s.HasNotified = true
	s.OverspeedWarningHasNotified = true

	return view
}

// Peek returns the current state without advancing it or consuming a
// notification. Expiry and overspeed are only evaluated by Snapshot, so the
// result may lag behind what the next Snapshot would report.
func (a *SpeedAdvisory) Peek() SpeedLimit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

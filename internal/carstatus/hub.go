// Package carstatus is the shared world state of the perception pipeline.
//
// Producers (capture, detectors, speed sensor) push their latest results
// into a Hub; consumers (renderer, notifier, telemetry) poll it. Each field
// group has its own lock so unrelated producers never contend, and every
// image and slice is copied on the way in and on the way out.
package carstatus

import (
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/carstatus/internal/config"
	"github.com/banshee-data/carstatus/internal/imageutil"
	"github.com/banshee-data/carstatus/internal/monitoring"
	"github.com/banshee-data/carstatus/internal/timeutil"
)

var logf = monitoring.Prefixed("carstatus")

// Detection timings are smoothed as ema = ema*emaKeep + sample*emaGain.
const (
	emaKeep = 0.8
	emaGain = 0.2
)

// Options configures a Hub.
type Options struct {
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// ImageMaxSize bounds the longer side of the processing frame.
	// <= 0 keeps frames at native resolution.
	ImageMaxSize int
	Advisory     AdvisoryTimings
}

// OptionsFromConfig maps the process configuration onto hub options.
func OptionsFromConfig(cfg *config.StatusConfig, clock timeutil.Clock) Options {
	return Options{
		Clock:        clock,
		ImageMaxSize: cfg.GetImageMaxSize(),
		Advisory: AdvisoryTimings{
			MaxSpeedSignValidTime:            cfg.GetMaxSpeedSignValidTime(),
			OverspeedWarningAfterTrafficSign: cfg.GetOverspeedWarningAfterTrafficSign(),
			OverspeedWarningInterval:         cfg.GetOverspeedWarningInterval(),
			TimeToRenotifySameTrafficSign:    cfg.GetTimeToRenotifySameTrafficSign(),
		},
	}
}

// Hub holds the most recent perception state of one pipeline run.
//
// Reset is the only operation taking two locks; it acquires startMu before
// the advisory lock. Nothing else holds more than one lock at a time.
//
// Stored images are never mutated once swapped in, so readers grab the
// reference under the lock and copy outside it.
type Hub struct {
	clock        timeutil.Clock
	imageMaxSize int

	startMu   sync.Mutex
	startTime time.Time
	runID     string

	frameMu       sync.RWMutex
	frame         image.Image
	frameOriginal image.Image

	objectsMu sync.RWMutex
	objects   []TrafficObject

	lanesMu         sync.RWMutex
	laneLines       []LaneLine
	lineMask        image.Image
	detectedLineImg image.Image
	reducedLineImg  image.Image

	// float64 bits; lock-free so the speed sensor never waits on a consumer.
	carSpeed atomic.Uint64

	timeMu              sync.Mutex
	objectDetectionTime time.Duration
	laneDetectionTime   time.Duration

	advisory *SpeedAdvisory
}

// New returns a Hub whose run starts now.
func New(opts Options) *Hub {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	h := &Hub{
		clock:        clock,
		imageMaxSize: opts.ImageMaxSize,
		advisory:     NewSpeedAdvisory(clock, opts.Advisory),
	}

	h.startMu.Lock()
	h.startTime = clock.Now()
	h.runID = uuid.NewString()
	h.startMu.Unlock()

	return h
}

// Reset starts a new run: start time, run ID and speed advisory go back to
// their defaults. Frames, detections and timings are kept.
func (h *Hub) Reset() {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	h.advisory.mu.Lock()
	defer h.advisory.mu.Unlock()

	now := h.clock.Now()
	h.startTime = now
	h.runID = uuid.NewString()
	h.advisory.resetLocked(now)
	logf("reset run %s", h.runID)
}

// StartTime returns when the current run started.
func (h *Hub) StartTime() time.Time {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	return h.startTime
}

// RunID identifies the current run; it changes on every Reset.
func (h *Hub) RunID() string {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	return h.runID
}

// SetFrame stores a processing-sized copy and a native-resolution copy of
// img. The caller may reuse img as soon as SetFrame returns.
func (h *Hub) SetFrame(img image.Image) {
	processed := imageutil.Clone(imageutil.ResizeByMaxSize(img, h.imageMaxSize))
	original := imageutil.Clone(img)

	h.frameMu.Lock()
	h.frame = processed
	h.frameOriginal = original
	h.frameMu.Unlock()
}

// Frame returns a copy of the processing-sized frame, or nil before the
// first SetFrame.
func (h *Hub) Frame() image.Image {
	h.frameMu.RLock()
	frame := h.frame
	h.frameMu.RUnlock()
	return imageutil.Clone(frame)
}

// Frames returns copies of the processing-sized and the native-resolution
// frame, both from the same SetFrame call.
func (h *Hub) Frames() (frame, original image.Image) {
	h.frameMu.RLock()
	frame, original = h.frame, h.frameOriginal
	h.frameMu.RUnlock()
	return imageutil.Clone(frame), imageutil.Clone(original)
}

// SetDetectedObjects replaces the detected objects.
func (h *Hub) SetDetectedObjects(objects []TrafficObject) {
	objects = cloneObjects(objects)

	h.objectsMu.Lock()
	h.objects = objects
	h.objectsMu.Unlock()
}

// DetectedObjects returns a copy of the detected objects.
func (h *Hub) DetectedObjects() []TrafficObject {
	h.objectsMu.RLock()
	defer h.objectsMu.RUnlock()
	return cloneObjects(h.objects)
}

// SetLaneResult replaces the lane lines together with their visualization
// images: the line mask, the annotated detection image and the reduced
// line image.
func (h *Hub) SetLaneResult(lines []LaneLine, mask, annotated, reduced image.Image) {
	lines = cloneLaneLines(lines)
	mask = imageutil.Clone(mask)
	annotated = imageutil.Clone(annotated)
	reduced = imageutil.Clone(reduced)

	h.lanesMu.Lock()
	h.laneLines = lines
	h.lineMask = mask
	h.detectedLineImg = annotated
	h.reducedLineImg = reduced
	h.lanesMu.Unlock()
}

// SetLaneLines replaces only the lane lines; the visualization images stay
// as last set.
func (h *Hub) SetLaneLines(lines []LaneLine) {
	lines = cloneLaneLines(lines)

	h.lanesMu.Lock()
	h.laneLines = lines
	h.lanesMu.Unlock()
}

// DetectedLaneLines returns a copy of the lane lines.
func (h *Hub) DetectedLaneLines() []LaneLine {
	h.lanesMu.RLock()
	defer h.lanesMu.RUnlock()
	return cloneLaneLines(h.laneLines)
}

// LineMask returns a copy of the lane line mask.
func (h *Hub) LineMask() image.Image {
	h.lanesMu.RLock()
	img := h.lineMask
	h.lanesMu.RUnlock()
	return imageutil.Clone(img)
}

// DetectedLinesViz returns a copy of the annotated lane detection image.
func (h *Hub) DetectedLinesViz() image.Image {
	h.lanesMu.RLock()
	img := h.detectedLineImg
	h.lanesMu.RUnlock()
	return imageutil.Clone(img)
}

// ReducedLinesViz returns a copy of the reduced lane line image.
func (h *Hub) ReducedLinesViz() image.Image {
	h.lanesMu.RLock()
	img := h.reducedLineImg
	h.lanesMu.RUnlock()
	return imageutil.Clone(img)
}

// SetCarSpeed stores the measured vehicle speed. Values are not validated.
func (h *Hub) SetCarSpeed(speed float64) {
	h.carSpeed.Store(math.Float64bits(speed))
}

// CarSpeed returns the last measured vehicle speed, 0 if none was set.
func (h *Hub) CarSpeed() float64 {
	return math.Float64frombits(h.carSpeed.Load())
}

func smooth(ema, sample time.Duration) time.Duration {
	return time.Duration(float64(ema)*emaKeep + float64(sample)*emaGain)
}

// SetObjectDetectionTime folds d into the object detection time average.
func (h *Hub) SetObjectDetectionTime(d time.Duration) {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()
	h.objectDetectionTime = smooth(h.objectDetectionTime, d)
}

// ObjectDetectionTime returns the smoothed object detection time.
func (h *Hub) ObjectDetectionTime() time.Duration {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()
	return h.objectDetectionTime
}

// SetLaneDetectionTime folds d into the lane detection time average.
func (h *Hub) SetLaneDetectionTime(d time.Duration) {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()
	h.laneDetectionTime = smooth(h.laneDetectionTime, d)
}

// LaneDetectionTime returns the smoothed lane detection time.
func (h *Hub) LaneDetectionTime() time.Duration {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()
	return h.laneDetectionTime
}

// TriggerSpeedLimit records a detected speed-limit sign. See SpeedAdvisory.Trigger.
func (h *Hub) TriggerSpeedLimit(speed int) {
	h.advisory.Trigger(speed)
}

// RemoveSpeedLimit deactivates the current speed limit.
func (h *Hub) RemoveSpeedLimit() {
	h.advisory.Clear()
}

// MaxSpeedLimit advances the speed advisory against the current car speed
// and returns its state. Each call consumes one notification opportunity;
// see SpeedAdvisory.Snapshot.
func (h *Hub) MaxSpeedLimit() SpeedLimit {
	return h.advisory.Snapshot(h.CarSpeed())
}

// PeekSpeedLimit returns the advisory state without advancing it.
func (h *Hub) PeekSpeedLimit() SpeedLimit {
	return h.advisory.Peek()
}

// ApplySignDetections routes speed-limit and end-of-limit signs found in
// objects into the advisory, in detection order.
func (h *Hub) ApplySignDetections(objects []TrafficObject) {
	for _, o := range objects {
		if v, ok := o.SpeedLimit(); ok {
			h.advisory.Trigger(v)
		} else if o.IsEndOfSpeedLimit() {
			h.advisory.Clear()
		}
	}
}

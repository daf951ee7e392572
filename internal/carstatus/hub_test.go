package carstatus

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/carstatus/internal/config"
	"github.com/banshee-data/carstatus/internal/testutil"
	"github.com/banshee-data/carstatus/internal/timeutil"
)

func newTestHub(maxSize int) (*Hub, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(t0)
	return New(Options{Clock: clock, ImageMaxSize: maxSize, Advisory: testTimings}), clock
}

func TestNew(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	assert.Equal(t, t0, h.StartTime())
	assert.NotEmpty(t, h.RunID())
	assert.Nil(t, h.Frame())
	assert.Empty(t, h.DetectedObjects())
	assert.Empty(t, h.DetectedLaneLines())
	assert.Nil(t, h.LineMask())
	assert.Zero(t, h.CarSpeed())
	assert.Zero(t, h.ObjectDetectionTime())
	assert.Zero(t, h.LaneDetectionTime())
}

func TestNew_DefaultsToRealClock(t *testing.T) {
	t.Parallel()

	before := time.Now()
	h := New(Options{})
	assert.False(t, h.StartTime().Before(before))
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultStatusConfig()
	opts := OptionsFromConfig(cfg, nil)

	assert.Equal(t, config.DefaultImageMaxSize, opts.ImageMaxSize)
	assert.Equal(t, AdvisoryTimings{
		MaxSpeedSignValidTime:            config.DefaultMaxSpeedSignValidTime,
		OverspeedWarningAfterTrafficSign: config.DefaultOverspeedWarningAfterTrafficSign,
		OverspeedWarningInterval:         config.DefaultOverspeedWarningInterval,
		TimeToRenotifySameTrafficSign:    config.DefaultTimeToRenotifySameTrafficSign,
	}, opts.Advisory)
}

func TestHub_SetFrameStoresResizedAndOriginal(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(100)

	h.SetFrame(testutil.NewGradientFrame(400, 200))

	frame, original := h.Frames()
	require.NotNil(t, frame)
	require.NotNil(t, original)
	assert.Equal(t, image.Rect(0, 0, 100, 50), frame.Bounds())
	assert.Equal(t, image.Rect(0, 0, 400, 200), original.Bounds())
	assert.Equal(t, frame.Bounds(), h.Frame().Bounds())
}

func TestHub_SetFrameCopiesInput(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	img := testutil.NewGradientFrame(16, 16)
	want := img.RGBAAt(0, 0)
	h.SetFrame(img)

	testutil.Scribble(img)

	frame, original := h.Frames()
	assert.Equal(t, want, frame.(*image.RGBA).RGBAAt(0, 0))
	assert.Equal(t, want, original.(*image.RGBA).RGBAAt(0, 0))
}

func TestHub_FrameReturnsIndependentCopies(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	h.SetFrame(testutil.NewGradientFrame(16, 16))

	a := h.Frame().(*image.RGBA)
	b := h.Frame().(*image.RGBA)
	want := b.RGBAAt(0, 0)

	testutil.Scribble(a)

	assert.Equal(t, want, b.RGBAAt(0, 0), "copies must not share pixels")
	assert.Equal(t, want, h.Frame().(*image.RGBA).RGBAAt(0, 0), "hub state must not change")
}

func TestHub_DetectedObjectsValueSemantics(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	objects := []TrafficObject{
		{ClassID: 1, Label: "car", Score: 0.9, Box: image.Rect(1, 2, 3, 4)},
		{ClassID: 7, Label: "max_speed_50", Score: 0.8, Box: image.Rect(5, 6, 7, 8)},
	}
	h.SetDetectedObjects(objects)
	objects[0].Label = "truck"

	got := h.DetectedObjects()
	require.Len(t, got, 2)
	assert.Equal(t, "car", got[0].Label)

	got[1].Score = 0
	assert.Equal(t, float32(0.8), h.DetectedObjects()[1].Score)

	// Full replace, no merge.
	h.SetDetectedObjects([]TrafficObject{{Label: "person"}})
	if diff := cmp.Diff([]TrafficObject{{Label: "person"}}, h.DetectedObjects()); diff != "" {
		t.Errorf("DetectedObjects() mismatch (-want +got):\n%s", diff)
	}

	h.SetDetectedObjects(nil)
	assert.Empty(t, h.DetectedObjects())
}

func TestHub_LaneResult(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	lines := []LaneLine{
		{Side: LaneSideLeft, Points: []image.Point{{10, 100}, {40, 20}}},
		{Side: LaneSideRight, Dashed: true, Points: []image.Point{{90, 100}, {60, 20}}},
	}
	mask := testutil.NewSolidGray(32, 32, 255)
	annotated := testutil.NewGradientFrame(32, 32)
	reduced := testutil.NewSolidGray(8, 8, 128)

	h.SetLaneResult(lines, mask, annotated, reduced)

	want := cloneLaneLines(lines)
	lines[0].Points[0] = image.Point{}
	testutil.Scribble(mask)

	if diff := cmp.Diff(want, h.DetectedLaneLines()); diff != "" {
		t.Errorf("DetectedLaneLines() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, color.Gray{Y: 255}, h.LineMask().(*image.Gray).GrayAt(0, 0))
	assert.Equal(t, annotated.Bounds(), h.DetectedLinesViz().Bounds())
	assert.Equal(t, image.Rect(0, 0, 8, 8), h.ReducedLinesViz().Bounds())

	got := h.DetectedLaneLines()
	got[1].Points[0] = image.Point{}
	assert.Equal(t, image.Point{90, 100}, h.DetectedLaneLines()[1].Points[0])
}

func TestHub_SetLaneLinesKeepsVisualizations(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	h.SetLaneResult(
		[]LaneLine{{Side: LaneSideLeft}},
		testutil.NewSolidGray(4, 4, 1),
		testutil.NewGradientFrame(4, 4),
		testutil.NewSolidGray(2, 2, 3),
	)
	h.SetLaneLines([]LaneLine{{Side: LaneSideRight}, {Side: LaneSideLeft}})

	lines := h.DetectedLaneLines()
	require.Len(t, lines, 2)
	assert.Equal(t, LaneSideRight, lines[0].Side)
	require.NotNil(t, h.LineMask())
	assert.Equal(t, uint8(1), h.LineMask().(*image.Gray).GrayAt(0, 0).Y)
	assert.NotNil(t, h.DetectedLinesViz())
	assert.Equal(t, uint8(3), h.ReducedLinesViz().(*image.Gray).GrayAt(1, 1).Y)
}

func TestHub_CarSpeed(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	h.SetCarSpeed(42.5)
	assert.Equal(t, 42.5, h.CarSpeed())

	// Unchecked pass-through.
	h.SetCarSpeed(-3)
	assert.Equal(t, -3.0, h.CarSpeed())
}

func TestHub_DetectionTimeEMA(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(0)

	samples := []time.Duration{
		40 * time.Millisecond,
		55 * time.Millisecond,
		31 * time.Millisecond,
		120 * time.Millisecond,
		47 * time.Millisecond,
		50 * time.Millisecond,
	}

	var want, wantLane time.Duration
	for _, d := range samples {
		want = time.Duration(float64(want)*0.8 + float64(d)*0.2)
		wantLane = time.Duration(float64(wantLane)*0.8 + float64(2*d)*0.2)
		h.SetObjectDetectionTime(d)
		h.SetLaneDetectionTime(2 * d)
		assert.Equal(t, want, h.ObjectDetectionTime())
	}

	assert.Equal(t, want, h.ObjectDetectionTime())
	assert.Equal(t, wantLane, h.LaneDetectionTime(), "lane EMA tracks its own samples")
	assert.Equal(t, 8*time.Millisecond, smooth(0, 40*time.Millisecond))
}

func TestHub_ResetRestartsRunOnly(t *testing.T) {
	t.Parallel()
	h, clock := newTestHub(0)

	h.SetFrame(testutil.NewGradientFrame(4, 4))
	h.SetDetectedObjects([]TrafficObject{{Label: "car"}})
	h.SetObjectDetectionTime(100 * time.Millisecond)
	h.TriggerSpeedLimit(50)
	runID := h.RunID()

	clock.Advance(time.Minute)
	h.Reset()

	assert.Equal(t, t0.Add(time.Minute), h.StartTime())
	assert.NotEqual(t, runID, h.RunID())

	s := h.PeekSpeedLimit()
	assert.Equal(t, SpeedLimit{BeginTime: t0.Add(time.Minute)}, s)

	assert.NotNil(t, h.Frame(), "reset keeps frames")
	assert.Len(t, h.DetectedObjects(), 1, "reset keeps detections")
	assert.Equal(t, 20*time.Millisecond, h.ObjectDetectionTime(), "reset keeps timings")
}

func TestHub_MaxSpeedLimitUsesCarSpeed(t *testing.T) {
	t.Parallel()
	h, clock := newTestHub(0)

	h.TriggerSpeedLimit(50)
	clock.Advance(testTimings.OverspeedWarningAfterTrafficSign + time.Second)

	h.SetCarSpeed(49)
	assert.False(t, h.MaxSpeedLimit().OverspeedWarning)

	h.SetCarSpeed(63)
	s := h.MaxSpeedLimit()
	assert.True(t, s.OverspeedWarning)
	assert.Equal(t, 50, s.SpeedLimit)

	h.RemoveSpeedLimit()
	assert.Equal(t, 0, h.PeekSpeedLimit().SpeedLimit)
}

func TestHub_ApplySignDetections(t *testing.T) {
	t.Parallel()
	h, clock := newTestHub(0)

	h.ApplySignDetections([]TrafficObject{
		{Label: "car"},
		{Label: "max_speed_60"},
	})
	assert.Equal(t, 60, h.PeekSpeedLimit().SpeedLimit)

	clock.Advance(time.Second)
	h.ApplySignDetections([]TrafficObject{{Label: "max_speed_60"}})
	assert.Equal(t, t0, h.PeekSpeedLimit().BeginTime, "same sign seen again is debounced")

	h.ApplySignDetections([]TrafficObject{{Label: LabelEndMaxSpeed}})
	assert.Equal(t, 0, h.PeekSpeedLimit().SpeedLimit)

	// Detection order wins within one batch.
	h.ApplySignDetections([]TrafficObject{{Label: LabelEndMaxSpeed}, {Label: "max_speed_30"}})
	assert.Equal(t, 30, h.PeekSpeedLimit().SpeedLimit)
}

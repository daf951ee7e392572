package telemetry

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a run of samples.
type Summary struct {
	Samples           int
	MeanSpeed         float64
	StdDevSpeed       float64
	MaxSpeed          float64
	OverspeedFraction float64

	MeanObjectDetectionTime time.Duration
	MeanLaneDetectionTime   time.Duration
}

// Summarize computes speed statistics, the share of samples with an active
// overspeed warning, and mean detection timings.
func Summarize(samples []Sample) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}

	speeds := make([]float64, n)
	objTimes := make([]float64, n)
	laneTimes := make([]float64, n)
	overspeed := 0
	for i, s := range samples {
		speeds[i] = s.CarSpeed
		objTimes[i] = float64(s.ObjectDetectionTime)
		laneTimes[i] = float64(s.LaneDetectionTime)
		if s.OverspeedWarning {
			overspeed++
		}
	}

	sum := Summary{
		Samples:                 n,
		MeanSpeed:               stat.Mean(speeds, nil),
		MaxSpeed:                floats.Max(speeds),
		OverspeedFraction:       float64(overspeed) / float64(n),
		MeanObjectDetectionTime: time.Duration(stat.Mean(objTimes, nil)),
		MeanLaneDetectionTime:   time.Duration(stat.Mean(laneTimes, nil)),
	}
	if n > 1 {
		sum.StdDevSpeed = stat.StdDev(speeds, nil)
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("samples=%d speed mean=%.1f sd=%.1f max=%.1f overspeed=%.0f%% object_det=%s lane_det=%s",
		s.Samples, s.MeanSpeed, s.StdDevSpeed, s.MaxSpeed, s.OverspeedFraction*100,
		s.MeanObjectDetectionTime, s.MeanLaneDetectionTime)
}

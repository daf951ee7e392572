package carstatus

import (
	"image"
	"strconv"
	"strings"
)

// Traffic sign labels emitted by the object detector that the hub routes
// into the speed advisory.
const (
	// LabelMaxSpeedPrefix prefixes speed-limit sign labels, e.g. "max_speed_50".
	LabelMaxSpeedPrefix = "max_speed_"
	// LabelEndMaxSpeed marks the end of the current speed-limit zone.
	LabelEndMaxSpeed = "end_max_speed"
)

// TrafficObject is one detection produced by the object detector.
type TrafficObject struct {
	ClassID int
	Label   string
	Score   float32
	Box     image.Rectangle
}

// SpeedLimit decodes a speed-limit sign label. It reports false for any
// other label, including malformed or non-positive limits.
func (o TrafficObject) SpeedLimit() (int, bool) {
	rest, ok := strings.CutPrefix(o.Label, LabelMaxSpeedPrefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// IsEndOfSpeedLimit reports whether the object is an end-of-limit sign.
func (o TrafficObject) IsEndOfSpeedLimit() bool {
	return o.Label == LabelEndMaxSpeed
}

// LaneSide identifies which side of the ego lane a line bounds.
type LaneSide int

const (
	LaneSideUnknown LaneSide = iota
	LaneSideLeft
	LaneSideRight
)

// LaneLine is a detected lane marking as a polyline in frame coordinates.
type LaneLine struct {
	Side   LaneSide
	Dashed bool
	Points []image.Point
}

func cloneObjects(objects []TrafficObject) []TrafficObject {
	if objects == nil {
		return nil
	}
	return append(make([]TrafficObject, 0, len(objects)), objects...)
}

func cloneLaneLines(lines []LaneLine) []LaneLine {
	if lines == nil {
		return nil
	}
	out := make([]LaneLine, len(lines))
	for i, l := range lines {
		out[i] = l
		if l.Points != nil {
			out[i].Points = append(make([]image.Point, 0, len(l.Points)), l.Points...)
		}
	}
	return out
}

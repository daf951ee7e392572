package main

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/banshee-data/carstatus/internal/carstatus"
)

// signCycle is the order in which the synthetic detector "sees" signs. Each
// sign stays in view for signVisibleTicks consecutive detections, once every
// signEveryTicks.
var signCycle = []string{"max_speed_50", "max_speed_30", "end_max_speed", "max_speed_80"}

const (
	signEveryTicks   = 150
	signVisibleTicks = 4
)

var (
	skyColor  = color.RGBA{R: 135, G: 170, B: 210, A: 255}
	roadColor = color.RGBA{R: 70, G: 70, B: 75, A: 255}
	lineColor = color.RGBA{R: 240, G: 240, B: 240, A: 255}
)

// signAt returns the sign label visible at a detector tick, or "".
func signAt(tick int) string {
	if tick%signEveryTicks >= signVisibleTicks {
		return ""
	}
	return signCycle[(tick/signEveryTicks)%len(signCycle)]
}

// syntheticFrame draws a sky over road scene whose dashed centre line
// scrolls with tick.
func syntheticFrame(width, height, tick int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	horizon := height * 2 / 5
	draw.Draw(img, image.Rect(0, 0, width, horizon), image.NewUniform(skyColor), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, horizon, width, height), image.NewUniform(roadColor), image.Point{}, draw.Src)

	dash := max(height/20, 1)
	cx := width / 2
	for y := horizon + (tick*dash/4)%(2*dash); y < height; y += 2 * dash {
		r := image.Rect(cx-2, y, cx+2, y+dash).Intersect(img.Bounds())
		draw.Draw(img, r, image.NewUniform(lineColor), image.Point{}, draw.Src)
	}
	return img
}

// syntheticObjects returns a lead vehicle drifting across the frame plus the
// sign scheduled for tick, if any.
func syntheticObjects(bounds image.Rectangle, tick int) []carstatus.TrafficObject {
	w, h := bounds.Dx(), bounds.Dy()
	carW, carH := max(w/8, 1), max(h/8, 1)
	x := bounds.Min.X + w/2 - carW/2 + (tick%40-20)*w/200
	y := bounds.Min.Y + h/2

	objects := []carstatus.TrafficObject{{
		ClassID: 2,
		Label:   "car",
		Score:   0.9,
		Box:     image.Rect(x, y, x+carW, y+carH).Intersect(bounds),
	}}

	if label := signAt(tick); label != "" {
		side := max(w/20, 1)
		sx := bounds.Max.X - 2*side
		sy := bounds.Min.Y + h/4
		objects = append(objects, carstatus.TrafficObject{
			ClassID: 11,
			Label:   label,
			Score:   0.8,
			Box:     image.Rect(sx, sy, sx+side, sy+side).Intersect(bounds),
		})
	}
	return objects
}

type laneResult struct {
	Lines     []carstatus.LaneLine
	Mask      *image.Gray
	Annotated *image.RGBA
	Reduced   *image.Gray
}

// syntheticLanes returns the two ego lane boundaries converging on the
// horizon, with a binary mask, an annotated view and a reduced view of them.
func syntheticLanes(bounds image.Rectangle, tick int) laneResult {
	w, h := bounds.Dx(), bounds.Dy()
	horizon := image.Pt(bounds.Min.X+w/2, bounds.Min.Y+h*2/5)
	sway := (tick%20 - 10) * w / 400
	left := image.Pt(bounds.Min.X+w/6+sway, bounds.Max.Y-1)
	right := image.Pt(bounds.Max.X-w/6+sway, bounds.Max.Y-1)

	lines := []carstatus.LaneLine{
		{Side: carstatus.LaneSideLeft, Points: []image.Point{left, horizon}},
		{Side: carstatus.LaneSideRight, Dashed: true, Points: []image.Point{right, horizon}},
	}

	mask := image.NewGray(bounds)
	annotated := image.NewRGBA(bounds)
	draw.Draw(annotated, bounds, image.NewUniform(roadColor), image.Point{}, draw.Src)
	for _, l := range lines {
		drawSegment(mask, l.Points[0], l.Points[1], color.Gray{Y: 255})
		drawSegment(annotated, l.Points[0], l.Points[1], color.RGBA{G: 255, A: 255})
	}

	reduced := image.NewGray(image.Rect(0, 0, max(w/4, 1), max(h/4, 1)))
	draw.NearestNeighbor.Scale(reduced, reduced.Bounds(), mask, bounds, draw.Src, nil)

	return laneResult{Lines: lines, Mask: mask, Annotated: annotated, Reduced: reduced}
}

// drawSegment plots a straight segment from a to b.
func drawSegment(img draw.Image, a, b image.Point, c color.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := max(abs(dx), abs(dy), 1)
	for i := 0; i <= steps; i++ {
		img.Set(a.X+dx*i/steps, a.Y+dy*i/steps, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

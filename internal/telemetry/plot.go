package telemetry

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no samples to plot")

// WritePlot renders car speed, the active speed limit and overspeed
// warnings against run time to an image file; the format follows the
// extension of path (.png, .svg, .pdf).
func WritePlot(samples []Sample, path string) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - speed advisory", samples[0].RunID)
	p.X.Label.Text = "Elapsed (s)"
	p.Y.Label.Text = "Speed"

	speedPts := make(plotter.XYs, 0, len(samples))
	limitPts := make(plotter.XYs, 0, len(samples))
	warnPts := make(plotter.XYs, 0)
	for _, s := range samples {
		x := s.Elapsed.Seconds()
		speedPts = append(speedPts, plotter.XY{X: x, Y: s.CarSpeed})
		limit := 0.0
		if s.SpeedLimit > 0 {
			limit = float64(s.SpeedLimit)
		}
		limitPts = append(limitPts, plotter.XY{X: x, Y: limit})
		if s.OverspeedWarning {
			warnPts = append(warnPts, plotter.XY{X: x, Y: s.CarSpeed})
		}
	}

	speedLine, err := plotter.NewLine(speedPts)
	if err != nil {
		return err
	}
	speedLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	speedLine.Width = vg.Points(1)
	p.Add(speedLine)
	p.Legend.Add("car speed", speedLine)

	limitLine, err := plotter.NewLine(limitPts)
	if err != nil {
		return err
	}
	limitLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	limitLine.Width = vg.Points(1.5)
	limitLine.StepStyle = plotter.PostStep
	p.Add(limitLine)
	p.Legend.Add("speed limit", limitLine)

	if len(warnPts) > 0 {
		warn, err := plotter.NewScatter(warnPts)
		if err != nil {
			return err
		}
		warn.GlyphStyle.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
		warn.GlyphStyle.Shape = draw.TriangleGlyph{}
		p.Add(warn)
		p.Legend.Add("overspeed warning", warn)
	}

	p.Add(plotter.NewGrid())

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

package telemetry

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders an interactive HTML line chart of car speed and the
// active speed limit. Samples without an active limit leave a gap.
func WriteChart(samples []Sample, w io.Writer) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	xs := make([]string, 0, len(samples))
	speeds := make([]opts.LineData, 0, len(samples))
	limits := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		xs = append(xs, fmt.Sprintf("%.1f", s.Elapsed.Seconds()))
		speeds = append(speeds, opts.LineData{Value: s.CarSpeed})
		if s.SpeedLimit > 0 {
			limits = append(limits, opts.LineData{Value: s.SpeedLimit})
		} else {
			limits = append(limits, opts.LineData{Value: "-"})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Speed Advisory", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed Advisory", Subtitle: fmt.Sprintf("run=%s samples=%d", samples[0].RunID, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed"}),
	)
	line.SetXAxis(xs).
		AddSeries("car speed", speeds).
		AddSeries("speed limit", limits)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

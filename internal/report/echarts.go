// Package report renders trajectory and fix-rate diagnostics: interactive
// HTML charts via go-echarts and static PNG path plots via gonum/plot.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mjones029/tracksim/internal/track"
)

// NamedTrajectory pairs a pipeline stage label with its trajectory for
// overlay plotting.
type NamedTrajectory struct {
	Name       string
	Trajectory track.Trajectory
}

// RenderPathHTML writes an HTML scatter chart of one or more trajectories in
// XY space, one series per stage.
func RenderPathHTML(w io.Writer, title string, trajs []NamedTrajectory) error {
	// Symmetric padding so the path is not flush against the axes.
	var minX, maxX, minY, maxY float64
	first := true
	for _, nt := range trajs {
		for _, f := range nt.Trajectory.Fixes {
			if first {
				minX, maxX, minY, maxY = f.X, f.X, f.Y, f.Y
				first = false
				continue
			}
			minX = min(minX, f.X)
			maxX = max(maxX, f.X)
			minY = min(minY, f.Y)
			maxY = max(maxY, f.Y)
		}
	}
	padX := (maxX - minX) * 0.05
	padY := (maxY - minY) * 0.05
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX - padX, Max: maxX + padX, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY - padY, Max: maxY + padY, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	for _, nt := range trajs {
		data := make([]opts.ScatterData, 0, len(nt.Trajectory.Fixes))
		for _, f := range nt.Trajectory.Fixes {
			data = append(data, opts.ScatterData{
				Value:      []interface{}{f.X, f.Y},
				SymbolSize: 5,
			})
		}
		scatter.AddSeries(nt.Name, data)
	}
	return scatter.Render(w)
}

// RenderIntervalHTML writes an HTML bar chart of the fix-interval frequency
// table. A clean run shows one bar at the cadence; drops show up as bars at
// integer multiples of it.
func RenderIntervalHTML(w io.Writer, title string, bins []track.IntervalBin) error {
	labels := make([]string, 0, len(bins))
	values := make([]opts.BarData, 0, len(bins))
	for _, b := range bins {
		labels = append(labels, formatInterval(b.Interval))
		values = append(values, opts.BarData{Value: b.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "elapsed between fixes"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pairs"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("fix pairs", values)
	return bar.Render(w)
}

// formatInterval renders durations in the units ecologists read fix schedules
// in: whole hours where possible, minutes otherwise.
func formatInterval(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return d.String()
}

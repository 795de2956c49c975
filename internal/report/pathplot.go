package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mjones029/tracksim/internal/track"
)

// WritePathPNG writes a static PNG of the trajectory path with the start fix
// and any attraction points marked.
func WritePathPNG(w io.Writer, title string, t track.Trajectory, attractors []track.Point) error {
	if len(t.Fixes) == 0 {
		return fmt.Errorf("empty trajectory")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	xys := make(plotter.XYs, len(t.Fixes))
	for i, f := range t.Fixes {
		xys[i].X = f.X
		xys[i].Y = f.Y
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("path line: %w", err)
	}
	line.Color = color.RGBA{B: 180, A: 255}
	p.Add(line)

	start, err := plotter.NewScatter(plotter.XYs{{X: t.Fixes[0].X, Y: t.Fixes[0].Y}})
	if err != nil {
		return fmt.Errorf("start marker: %w", err)
	}
	start.GlyphStyle.Color = color.RGBA{G: 160, A: 255}
	start.GlyphStyle.Radius = vg.Points(4)
	p.Add(start)
	p.Legend.Add("start", start)

	if len(attractors) > 0 {
		axy := make(plotter.XYs, len(attractors))
		for i, a := range attractors {
			axy[i].X = a.X
			axy[i].Y = a.Y
		}
		att, err := plotter.NewScatter(axy)
		if err != nil {
			return fmt.Errorf("attractor marker: %w", err)
		}
		att.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		att.GlyphStyle.Radius = vg.Points(4)
		p.Add(att)
		p.Legend.Add("attractor", att)
	}

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

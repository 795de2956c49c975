package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/mjones029/tracksim/internal/fsutil"
	"github.com/mjones029/tracksim/internal/track"
)

// WriteCharts renders the standard per-run chart set into dir: an HTML path
// overlay, an HTML fix-interval histogram, and a PNG of the final path.
func WriteCharts(fsys fsutil.FileSystem, dir, label string, trajs []NamedTrajectory, bins []track.IntervalBin, attractors []track.Point) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	write := func(name string, render func(w io.Writer) error) error {
		f, err := fsys.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := render(f); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", name, err)
		}
		return f.Close()
	}

	if err := write("path.html", func(w io.Writer) error {
		return RenderPathHTML(w, label, trajs)
	}); err != nil {
		return err
	}
	if err := write("intervals.html", func(w io.Writer) error {
		return RenderIntervalHTML(w, label+" fix intervals", bins)
	}); err != nil {
		return err
	}
	if len(trajs) > 0 {
		final := trajs[len(trajs)-1]
		if err := write("path.png", func(w io.Writer) error {
			return WritePathPNG(w, label, final.Trajectory, attractors)
		}); err != nil {
			return err
		}
	}
	return nil
}

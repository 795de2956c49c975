package track

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// IntervalBin is one row of the fix-interval frequency table: how many
// consecutive fix pairs were separated by exactly Interval.
type IntervalBin struct {
	Interval time.Duration `json:"interval"`
	Count    int           `json:"count"`
}

// IntervalHistogram builds the fix-interval frequency table for a trajectory,
// sorted by ascending interval. A regular trajectory yields a single bin; a
// trajectory with dropped fixes shows extra bins at integer multiples of the
// cadence.
func IntervalHistogram(t Trajectory) []IntervalBin {
	counts := make(map[time.Duration]int)
	for _, d := range t.Intervals() {
		counts[d]++
	}
	out := make([]IntervalBin, 0, len(counts))
	for d, n := range counts {
		out = append(out, IntervalBin{Interval: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval < out[j].Interval })
	return out
}

// Summary holds per-trajectory movement statistics for diagnostic reporting.
type Summary struct {
	Fixes        int           `json:"fixes"`
	PathLength   float64       `json:"path_length_m"`
	NetDistance  float64       `json:"net_distance_m"`
	MeanStep     float64       `json:"mean_step_m"`
	StepStdDev   float64       `json:"step_stddev_m"`
	Duration     time.Duration `json:"duration"`
	MinX, MaxX   float64
	MinY, MaxY   float64
}

// Summarize computes movement statistics over a trajectory.
func Summarize(t Trajectory) Summary {
	s := Summary{Fixes: len(t.Fixes)}
	if len(t.Fixes) == 0 {
		return s
	}
	s.MinX, s.MaxX = t.Fixes[0].X, t.Fixes[0].X
	s.MinY, s.MaxY = t.Fixes[0].Y, t.Fixes[0].Y
	for _, f := range t.Fixes {
		s.MinX = min(s.MinX, f.X)
		s.MaxX = max(s.MaxX, f.X)
		s.MinY = min(s.MinY, f.Y)
		s.MaxY = max(s.MaxY, f.Y)
	}
	steps := t.Steps()
	for _, d := range steps {
		s.PathLength += d
	}
	if len(steps) > 0 {
		s.MeanStep = stat.Mean(steps, nil)
	}
	if len(steps) > 1 {
		s.StepStdDev = stat.StdDev(steps, nil)
	}
	s.NetDistance = t.Start().Point().Distance(t.End().Point())
	s.Duration = t.End().Timestamp.Sub(t.Start().Timestamp)
	return s
}

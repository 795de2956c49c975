// Package schedule maps observed fix times onto a nominal fix schedule,
// reporting per-fix drift and the resulting fix-rate diagnostics.
package schedule

import (
	"fmt"
	"time"

	"github.com/mjones029/tracksim/internal/track"
)

// Config describes the nominal fix schedule.
type Config struct {
	// Epoch anchors the schedule grid. The zero value anchors at the Unix
	// epoch, which is correct for any cadence that divides a day.
	Epoch time.Time

	// Cadence is the nominal interval between scheduled fixes.
	Cadence time.Duration

	// RoundTo is the granularity observed times are rounded to, half-up.
	// Zero defaults to whole hours when the cadence is a whole number of
	// hours (collar schedules are hour-aligned), otherwise to the cadence.
	RoundTo time.Duration

	// Tolerance is the maximum allowed distance between an observed time and
	// its rounded time before the fix is flagged.
	Tolerance time.Duration
}

func (c Config) epoch() time.Time {
	if c.Epoch.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return c.Epoch
}

func (c Config) roundTo() time.Duration {
	if c.RoundTo != 0 {
		return c.RoundTo
	}
	if c.Cadence > time.Hour && c.Cadence%time.Hour == 0 {
		return time.Hour
	}
	return c.Cadence
}

// Validate rejects unusable schedule configurations.
func (c Config) Validate() error {
	if c.Cadence <= 0 {
		return fmt.Errorf("cadence must be positive, got %s", c.Cadence)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %s", c.Tolerance)
	}
	if r := c.roundTo(); r <= 0 || c.Cadence%r != 0 {
		return fmt.Errorf("rounding granularity %s must divide cadence %s", r, c.Cadence)
	}
	return nil
}

// DriftFlag reports one fix whose observed time was further from the schedule
// than the tolerance allows. Flags are collected, never fatal: the rest of
// the batch is still processed.
type DriftFlag struct {
	Index    int           `json:"index"`
	Observed time.Time     `json:"observed"`
	Rounded  time.Time     `json:"rounded"`
	Drift    time.Duration `json:"drift"`
}

// Result is the outcome of regularizing one trajectory.
type Result struct {
	// Trajectory carries the rounded timestamps, positions unchanged.
	Trajectory track.Trajectory `json:"trajectory"`

	// Flags lists every fix whose drift exceeded the tolerance.
	Flags []DriftFlag `json:"flags,omitempty"`

	// Intervals is the elapsed-time frequency table between consecutive
	// rounded fixes. A clean run shows a single bin at the cadence; upstream
	// drops appear as integer multiples of it.
	Intervals []track.IntervalBin `json:"intervals"`

	// MaxDrift is the largest observed drift magnitude, flagged or not.
	MaxDrift time.Duration `json:"max_drift"`
}

// Round maps one observed instant to the nearest grid-aligned instant,
// half-up. Pure duration arithmetic against the epoch grid: carrying across
// hour or day boundaries falls out of the arithmetic with no special cases.
func (c Config) Round(t time.Time) time.Time {
	grid := c.roundTo()
	epoch := c.epoch()
	off := t.Sub(epoch)
	steps := off / grid
	rem := off % grid
	if rem < 0 {
		rem += grid
		steps--
	}
	if 2*rem >= grid {
		steps++
	}
	return epoch.Add(steps * grid)
}

// Regularize rounds every fix time in t onto the schedule grid and reports
// per-fix drift flags and the fix-interval histogram of the rounded result.
func Regularize(t track.Trajectory, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	out := t.Clone()
	res := Result{}
	for i, f := range out.Fixes {
		rounded := cfg.Round(f.Timestamp)
		drift := rounded.Sub(f.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > res.MaxDrift {
			res.MaxDrift = drift
		}
		if drift > cfg.Tolerance {
			res.Flags = append(res.Flags, DriftFlag{
				Index:    i,
				Observed: f.Timestamp,
				Rounded:  rounded,
				Drift:    drift,
			})
		}
		out.Fixes[i].Timestamp = rounded
	}

	res.Trajectory = out
	res.Intervals = track.IntervalHistogram(out)
	return res, nil
}

// Slot is one instant of the full cadence grid between the first and last
// rounded fix. Fix is nil where no observation landed on the slot: an
// explicit absence marker for downstream interpolation.
type Slot struct {
	Time time.Time  `json:"time"`
	Fix  *track.Fix `json:"fix,omitempty"`
}

// Timeline expands a regularized trajectory onto the full cadence grid,
// marking missing slots explicitly. Fix times must already be cadence-aligned
// relative to the first fix.
func Timeline(t track.Trajectory, cadence time.Duration) ([]Slot, error) {
	if cadence <= 0 {
		return nil, fmt.Errorf("cadence must be positive, got %s", cadence)
	}
	if len(t.Fixes) == 0 {
		return nil, nil
	}
	start := t.Fixes[0].Timestamp
	end := t.Fixes[len(t.Fixes)-1].Timestamp
	n := int(end.Sub(start)/cadence) + 1

	slots := make([]Slot, n)
	for i := range slots {
		slots[i].Time = start.Add(time.Duration(i) * cadence)
	}
	for i := range t.Fixes {
		f := &t.Fixes[i]
		off := f.Timestamp.Sub(start)
		if off%cadence != 0 {
			return nil, fmt.Errorf("fix %d at %s is not cadence-aligned", i, f.Timestamp.Format(time.RFC3339))
		}
		slots[off/cadence].Fix = f
	}
	return slots, nil
}

// Package interp fills missing cadence slots in a regularized trajectory so
// downstream state estimation sees a fully regular series. The pipeline treats
// the interpolator as a pluggable collaborator; Linear is the built-in
// implementation.
package interp

import (
	"fmt"

	"github.com/mjones029/tracksim/internal/schedule"
	"github.com/mjones029/tracksim/internal/track"
)

// Linear fills each missing slot by time-weighted linear interpolation
// between the nearest observed fixes on either side. Leading or trailing
// gaps have no bracketing fix and are rejected; schedule.Timeline never
// produces them.
type Linear struct{}

// Fill returns a trajectory with a fix at every slot.
func (Linear) Fill(slots []schedule.Slot) (track.Trajectory, error) {
	if len(slots) == 0 {
		return track.Trajectory{}, nil
	}
	if slots[0].Fix == nil || slots[len(slots)-1].Fix == nil {
		return track.Trajectory{}, fmt.Errorf("timeline has an unbounded gap: first and last slot must be observed")
	}

	out := track.Trajectory{Fixes: make([]track.Fix, len(slots))}
	prev := 0
	for i, s := range slots {
		if s.Fix != nil {
			out.Fixes[i] = track.Fix{X: s.Fix.X, Y: s.Fix.Y, Timestamp: s.Time}
			prev = i
			continue
		}

		// Scan forward for the next observed slot; the trailing slot is
		// always observed so this terminates.
		next := i + 1
		for slots[next].Fix == nil {
			next++
		}
		a, b := slots[prev].Fix, slots[next].Fix
		span := slots[next].Time.Sub(slots[prev].Time)
		w := float64(s.Time.Sub(slots[prev].Time)) / float64(span)
		out.Fixes[i] = track.Fix{
			X:         a.X + w*(b.X-a.X),
			Y:         a.Y + w*(b.Y-a.Y),
			Timestamp: s.Time,
		}
	}
	return out, nil
}

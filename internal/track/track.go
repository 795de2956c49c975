// Package track defines the trajectory value types shared by the simulation
// pipeline: timestamped planar fixes, ordered trajectories, and the derived
// step-length / turning-angle series consumed by diagnostics and state
// estimation.
package track

import (
	"fmt"
	"math"
	"time"
)

// Point is a planar location in projected coordinates (metres).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Bearing returns the direction from p to q in radians in (-pi, pi].
func (p Point) Bearing(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Fix is a single recorded position-and-time observation.
type Fix struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the fix location without its timestamp.
func (f Fix) Point() Point { return Point{X: f.X, Y: f.Y} }

// Trajectory is an ordered sequence of fixes for one individual. The slice
// order is the temporal order of visitation.
type Trajectory struct {
	ID    string `json:"id"`
	Fixes []Fix  `json:"fixes"`
}

// Len returns the number of fixes.
func (t Trajectory) Len() int { return len(t.Fixes) }

// Start returns the first fix. It panics on an empty trajectory.
func (t Trajectory) Start() Fix { return t.Fixes[0] }

// End returns the last fix. It panics on an empty trajectory.
func (t Trajectory) End() Fix { return t.Fixes[len(t.Fixes)-1] }

// Clone returns a deep copy so transformations can produce new sequences
// without aliasing the input.
func (t Trajectory) Clone() Trajectory {
	out := Trajectory{ID: t.ID}
	if t.Fixes != nil {
		out.Fixes = make([]Fix, len(t.Fixes))
		copy(out.Fixes, t.Fixes)
	}
	return out
}

// CheckMonotonic verifies that timestamps strictly increase along the
// sequence. A violation is reported with the offending index; callers that
// deliberately construct irregular sequences (duplicate boundary fixes before
// rescheduling) skip this check.
func (t Trajectory) CheckMonotonic() error {
	for i := 1; i < len(t.Fixes); i++ {
		if !t.Fixes[i].Timestamp.After(t.Fixes[i-1].Timestamp) {
			return fmt.Errorf("timestamps not strictly increasing at index %d (%s -> %s)",
				i, t.Fixes[i-1].Timestamp.Format(time.RFC3339), t.Fixes[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Intervals returns the elapsed time between consecutive fixes, one entry per
// consecutive pair. Used for fix-rate diagnostics only.
func (t Trajectory) Intervals() []time.Duration {
	if len(t.Fixes) < 2 {
		return nil
	}
	out := make([]time.Duration, 0, len(t.Fixes)-1)
	for i := 1; i < len(t.Fixes); i++ {
		out = append(out, t.Fixes[i].Timestamp.Sub(t.Fixes[i-1].Timestamp))
	}
	return out
}

// Reschedule returns a copy with timestamps replaced by a strictly regular
// sequence: start, start+interval, start+2*interval, ...
func (t Trajectory) Reschedule(start time.Time, interval time.Duration) Trajectory {
	out := t.Clone()
	for i := range out.Fixes {
		out.Fixes[i].Timestamp = start.Add(time.Duration(i) * interval)
	}
	return out
}

// WrapAngle maps an angle in radians onto (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Steps returns the step-length series: the distance travelled between each
// consecutive pair of fixes (n-1 values for n fixes).
func (t Trajectory) Steps() []float64 {
	if len(t.Fixes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(t.Fixes)-1)
	for i := 1; i < len(t.Fixes); i++ {
		out = append(out, t.Fixes[i-1].Point().Distance(t.Fixes[i].Point()))
	}
	return out
}

// Turns returns the turning-angle series: the change in heading at each
// interior fix, wrapped to (-pi, pi] (n-2 values for n fixes).
func (t Trajectory) Turns() []float64 {
	if len(t.Fixes) < 3 {
		return nil
	}
	out := make([]float64, 0, len(t.Fixes)-2)
	prev := t.Fixes[0].Point().Bearing(t.Fixes[1].Point())
	for i := 2; i < len(t.Fixes); i++ {
		h := t.Fixes[i-1].Point().Bearing(t.Fixes[i].Point())
		out = append(out, WrapAngle(h-prev))
		prev = h
	}
	return out
}

package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mjones029/tracksim/internal/track"
)

// ErrPhaseChainMismatch marks a composition whose declared phase start does
// not equal the previous phase's terminal location. This is a configuration
// error and fails the whole composition.
var ErrPhaseChainMismatch = errors.New("phase start does not match previous phase end")

// Phase is one segment of a composed walk. For every phase after the first
// the start location is normally inherited from the previous phase's terminal
// fix; setting ExplicitStart instead asserts the handoff and fails the
// composition if the declared Start disagrees with the inherited one.
type Phase struct {
	Params

	// ExplicitStart marks Params.Start as caller-supplied rather than
	// inherited, enabling the handoff check.
	ExplicitStart bool

	// RetainBoundary keeps this phase's final fix even though the next phase
	// repeats it, deliberately producing a duplicate consecutive position.
	// Downstream duplicate-fix handling is tested against these.
	RetainBoundary bool
}

// Schedule is the single global fix schedule applied to a composed
// trajectory, replacing the provisional per-phase step times.
type Schedule struct {
	Start   time.Time
	Cadence time.Duration
}

// Composition is a multi-phase trajectory with enough structure retained to
// reconstruct where each phase began.
type Composition struct {
	Trajectory track.Trajectory

	// Boundaries holds the index of each phase's first fix within Trajectory.
	Boundaries []int

	// Starts records each phase's realised start location, in phase order.
	Starts []track.Point
}

// ComposePhases runs each phase's generator in order, chaining the start of
// phase i to the terminal position of phase i-1, and concatenates the results
// into one trajectory on the given schedule. The final fix of every phase but
// the last is dropped to avoid duplicate consecutive positions, unless the
// phase sets RetainBoundary.
func ComposePhases(phases []Phase, sched Schedule, rng *rand.Rand) (Composition, error) {
	if len(phases) == 0 {
		return Composition{}, fmt.Errorf("no phases to compose")
	}
	if sched.Cadence <= 0 {
		return Composition{}, fmt.Errorf("schedule cadence must be positive, got %s", sched.Cadence)
	}

	comp := Composition{}
	var fixes []track.Fix
	var prevEnd track.Point

	for i, ph := range phases {
		p := ph.Params
		if i > 0 {
			if ph.ExplicitStart {
				if p.Start != prevEnd {
					return Composition{}, fmt.Errorf("phase %d: %w: declared (%g, %g), previous ended at (%g, %g)",
						i, ErrPhaseChainMismatch, p.Start.X, p.Start.Y, prevEnd.X, prevEnd.Y)
				}
			} else {
				p.Start = prevEnd
			}
		}

		leg, err := Generate(p, rng)
		if err != nil {
			return Composition{}, fmt.Errorf("phase %d: %w", i, err)
		}
		prevEnd = leg.End().Point()

		comp.Boundaries = append(comp.Boundaries, len(fixes))
		comp.Starts = append(comp.Starts, p.Start)

		last := len(phases) - 1
		if i < last && !ph.RetainBoundary {
			fixes = append(fixes, leg.Fixes[:len(leg.Fixes)-1]...)
		} else {
			fixes = append(fixes, leg.Fixes...)
		}
	}

	comp.Trajectory = track.Trajectory{Fixes: fixes}.Reschedule(sched.Start, sched.Cadence)
	return comp, nil
}

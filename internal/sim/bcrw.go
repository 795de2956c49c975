// Package sim generates synthetic animal movement trajectories as biased
// correlated random walks (BCRW) and composes multi-phase walks into a single
// track on a shared fix schedule.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mjones029/tracksim/internal/track"
)

// ErrDegenerateParameters marks a generator call rejected before any
// simulation work: negative step count, non-positive step scale, or a
// correlation outside [0, 1].
var ErrDegenerateParameters = errors.New("degenerate walk parameters")

// DefaultStepInterval is the simulated time between consecutive steps of a
// single generator run. The composer discards these in favour of one global
// schedule.
const DefaultStepInterval = time.Minute

// Params configures one biased correlated random walk.
type Params struct {
	// Steps is the number of moves to simulate; the output has Steps+1 fixes.
	Steps int

	// StepScale scales the chi-distributed step length draw (metres).
	StepScale float64

	// Rho is the heading correlation in [0, 1]: 0 draws each heading
	// uniformly at random, 1 follows the expected heading exactly.
	Rho float64

	// Bias is the strength of attraction toward Attractor. Zero gives a pure
	// unbiased correlated walk.
	Bias float64

	// DistDecay is the exponent applied to the distance from the attractor
	// when computing the attraction weight tanh(Bias * d^DistDecay).
	DistDecay float64

	// Start is the initial location.
	Start track.Point

	// Attractor is the point the walk is biased toward.
	Attractor track.Point

	// StartTime and StepInterval define the provisional per-step schedule.
	// Zero values default to time zero (UTC epoch) and DefaultStepInterval.
	StartTime    time.Time
	StepInterval time.Duration
}

// Validate rejects parameter sets the generator cannot simulate.
func (p Params) Validate() error {
	if p.Steps < 0 {
		return fmt.Errorf("%w: steps %d < 0", ErrDegenerateParameters, p.Steps)
	}
	if p.StepScale <= 0 {
		return fmt.Errorf("%w: step scale %g <= 0", ErrDegenerateParameters, p.StepScale)
	}
	if p.Rho < 0 || p.Rho > 1 {
		return fmt.Errorf("%w: rho %g outside [0, 1]", ErrDegenerateParameters, p.Rho)
	}
	return nil
}

// Generate simulates a biased correlated random walk and returns Steps+1
// fixes, the first at Start. All randomness comes from rng, so a fixed seed
// reproduces the walk exactly.
//
// Each step draws a heading from a wrapped normal centred on the circular
// weighted mean of the previous heading and the bearing to the attractor,
// then advances by a chi-distributed step length scaled by StepScale.
func Generate(p Params, rng *rand.Rand) (track.Trajectory, error) {
	if err := p.Validate(); err != nil {
		return track.Trajectory{}, err
	}
	interval := p.StepInterval
	if interval == 0 {
		interval = DefaultStepInterval
	}

	stepDist := distuv.Chi{K: 2, Src: rng}

	fixes := make([]track.Fix, 0, p.Steps+1)
	pos := p.Start
	fixes = append(fixes, track.Fix{X: pos.X, Y: pos.Y, Timestamp: p.StartTime})

	// The first heading has no memory: uniform over the full circle.
	heading := rng.Float64()*2*math.Pi - math.Pi

	for i := 1; i <= p.Steps; i++ {
		delta := pos.Distance(p.Attractor)
		psi := pos.Bearing(p.Attractor)

		// Attraction weight saturates toward 1 with distance and bias
		// strength, toward 0 when either is small.
		beta := math.Tanh(p.Bias * math.Pow(delta, p.DistDecay))

		mu := circularMean(heading, 1-beta, psi, beta)
		heading = drawHeading(mu, p.Rho, rng)

		step := p.StepScale * stepDist.Rand()
		pos = track.Point{
			X: pos.X + step*math.Cos(heading),
			Y: pos.Y + step*math.Sin(heading),
		}
		fixes = append(fixes, track.Fix{
			X:         pos.X,
			Y:         pos.Y,
			Timestamp: p.StartTime.Add(time.Duration(i) * interval),
		})
	}

	return track.Trajectory{Fixes: fixes}, nil
}

// circularMean computes the weighted circular mean of two angles via the
// vector sum atan2(sum w*sin, sum w*cos).
func circularMean(a float64, wa float64, b float64, wb float64) float64 {
	return math.Atan2(wa*math.Sin(a)+wb*math.Sin(b), wa*math.Cos(a)+wb*math.Cos(b))
}

// drawHeading samples a heading around mu from a wrapped normal whose spread
// is governed by the correlation rho: sigma = sqrt(-2 ln rho). rho=1 is
// deterministic, rho=0 degenerates to a uniform draw over the circle.
func drawHeading(mu, rho float64, rng *rand.Rand) float64 {
	switch {
	case rho >= 1:
		return track.WrapAngle(mu)
	case rho <= 0:
		return rng.Float64()*2*math.Pi - math.Pi
	default:
		n := distuv.Normal{Mu: mu, Sigma: math.Sqrt(-2 * math.Log(rho)), Src: rng}
		return track.WrapAngle(n.Rand())
	}
}

package hmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoRegimeSeries builds a step/turn series with an obvious switch: slow
// tortuous movement for the first half, fast directed movement for the second.
func twoRegimeSeries(n int) (steps, turns []float64) {
	steps = make([]float64, 2*n)
	turns = make([]float64, 2*n-1)
	for i := 0; i < n; i++ {
		steps[i] = 0.5 + 0.1*math.Sin(float64(i))
		steps[n+i] = 5 + 0.5*math.Cos(float64(i))
	}
	for i := range turns {
		if i < n {
			turns[i] = math.Pi * math.Sin(float64(3*i)) // scattered headings
		} else {
			turns[i] = 0.1 * math.Sin(float64(i)) // near-straight travel
		}
	}
	return steps, turns
}

func twoStateConfig() Config {
	return Config{
		States: []StateParams{
			{StepMean: 1, StepSD: 0.8, TurnMean: 0, TurnConcentration: 0.1},
			{StepMean: 4, StepSD: 2, TurnMean: 0, TurnConcentration: 0.7},
		},
	}
}

func TestFitValidation(t *testing.T) {
	steps := []float64{1, 2, 3}
	turns := []float64{0.1, 0.2}

	tests := []struct {
		name  string
		steps []float64
		turns []float64
		cfg   Config
	}{
		{"no states", steps, turns, Config{}},
		{"non-positive step mean", steps, turns, Config{States: []StateParams{{StepMean: 0, StepSD: 1}}}},
		{"non-positive step sd", steps, turns, Config{States: []StateParams{{StepMean: 1, StepSD: 0}}}},
		{"concentration at one", steps, turns, Config{States: []StateParams{{StepMean: 1, StepSD: 1, TurnConcentration: 1}}}},
		{"too few steps", []float64{1}, nil, twoStateConfig()},
		{"turn count mismatch", steps, []float64{0.1}, twoStateConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.steps, tt.turns, tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadInit)
		})
	}
}

func TestFitSeparatesRegimes(t *testing.T) {
	t.Parallel()
	steps, turns := twoRegimeSeries(60)

	res, err := Fit(steps, turns, twoStateConfig())
	require.NoError(t, err)
	require.Len(t, res.Labels, len(steps))

	// Each half should be dominated by a single state, and the two halves by
	// different states.
	firstHalf := majority(res.Labels[:60])
	secondHalf := majority(res.Labels[60:])
	assert.NotEqual(t, firstHalf, secondHalf)
	assert.Greater(t, share(res.Labels[:60], firstHalf), 0.9)
	assert.Greater(t, share(res.Labels[60:], secondHalf), 0.9)

	// The fitted step means should straddle the two regimes.
	lo, hi := res.States[firstHalf], res.States[secondHalf]
	assert.Less(t, lo.StepMean, 1.5)
	assert.Greater(t, hi.StepMean, 3.0)
}

func TestFitResultShape(t *testing.T) {
	t.Parallel()
	steps, turns := twoRegimeSeries(40)

	res, err := Fit(steps, turns, twoStateConfig())
	require.NoError(t, err)

	var initSum float64
	for _, p := range res.Initial {
		initSum += p
	}
	assert.InDelta(t, 1, initSum, 1e-9)

	require.Len(t, res.Transition, 2)
	for i, row := range res.Transition {
		var rowSum float64
		for _, p := range row {
			rowSum += p
		}
		assert.InDelta(t, 1, rowSum, 1e-9, "transition row %d", i)
	}

	for i, s := range res.States {
		assert.Greater(t, s.StepMean, 0.0, "state %d", i)
		assert.Greater(t, s.StepSD, 0.0, "state %d", i)
		assert.True(t, s.TurnConcentration >= 0 && s.TurnConcentration < 1)
	}

	// Two states: 2 transition + 1 initial + 8 emission free parameters.
	assert.InDelta(t, -2*res.LogLikelihood+2*11, res.AIC, 1e-9)
	assert.GreaterOrEqual(t, res.Iterations, 1)
}

func TestFitImprovesLikelihood(t *testing.T) {
	t.Parallel()
	steps, turns := twoRegimeSeries(50)

	one := twoStateConfig()
	one.MaxIterations = 1
	short, err := Fit(steps, turns, one)
	require.NoError(t, err)

	full, err := Fit(steps, turns, twoStateConfig())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, full.LogLikelihood, short.LogLikelihood)
}

func TestFitSingleState(t *testing.T) {
	t.Parallel()
	steps, turns := twoRegimeSeries(20)

	res, err := Fit(steps, turns, Config{States: []StateParams{{StepMean: 2, StepSD: 1}}})
	require.NoError(t, err)

	for _, l := range res.Labels {
		assert.Equal(t, 0, l)
	}
	assert.Equal(t, []float64{1}, res.Transition[0])
	// One state: no transition or initial freedom, four emission parameters.
	assert.InDelta(t, -2*res.LogLikelihood+2*4, res.AIC, 1e-9)
}

func TestFitHandlesZeroLengthSteps(t *testing.T) {
	t.Parallel()

	// Stationary fixes produce zero-length steps; the fit must stay finite.
	steps := []float64{0, 0, 1, 2, 0, 1.5, 2.5, 0}
	turns := []float64{0, 0.5, -0.5, 1, 0, 0.2, -0.2}

	res, err := Fit(steps, turns, twoStateConfig())
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res.LogLikelihood))
	assert.False(t, math.IsInf(res.LogLikelihood, 0))
}

func TestWrappedCauchyPDF(t *testing.T) {
	t.Parallel()

	t.Run("zero concentration is uniform", func(t *testing.T) {
		t.Parallel()
		for _, theta := range []float64{-3, -1, 0, 1, 3} {
			assert.InDelta(t, 1/(2*math.Pi), wrappedCauchyPDF(theta, 0, 0), 1e-12)
		}
	})

	t.Run("peaks at the mean direction", func(t *testing.T) {
		t.Parallel()
		peak := wrappedCauchyPDF(0.5, 0.5, 0.8)
		assert.Greater(t, peak, wrappedCauchyPDF(0.5+1, 0.5, 0.8))
		assert.Greater(t, peak, wrappedCauchyPDF(0.5-1, 0.5, 0.8))
	})

	t.Run("symmetric about the mean", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t,
			wrappedCauchyPDF(1.2, 0.2, 0.6),
			wrappedCauchyPDF(-0.8, 0.2, 0.6), 1e-12)
	})
}

func majority(labels []int) int {
	counts := map[int]int{}
	for _, l := range labels {
		counts[l]++
	}
	best, bestN := 0, -1
	for l, n := range counts {
		if n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

func share(labels []int, state int) float64 {
	var n int
	for _, l := range labels {
		if l == state {
			n++
		}
	}
	return float64(n) / float64(len(labels))
}

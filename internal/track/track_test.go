package track

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{"zero stays", 0, 0},
		{"pi stays", math.Pi, math.Pi},
		{"-pi wraps to pi", -math.Pi, math.Pi},
		{"3pi/2 wraps negative", 3 * math.Pi / 2, -math.Pi / 2},
		{"-3pi/2 wraps positive", -3 * math.Pi / 2, math.Pi / 2},
		{"full turn collapses", 2 * math.Pi, 0},
		{"two and a half turns", 5 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapAngle(tt.in)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.True(t, got > -math.Pi && got <= math.Pi, "result %g outside (-pi, pi]", got)
		})
	}
}

func TestPointDistanceBearing(t *testing.T) {
	t.Parallel()
	origin := Point{}

	assert.InDelta(t, 5, origin.Distance(Point{X: 3, Y: 4}), 1e-12)
	assert.InDelta(t, 0, origin.Bearing(Point{X: 1, Y: 0}), 1e-12)
	assert.InDelta(t, math.Pi/2, origin.Bearing(Point{X: 0, Y: 1}), 1e-12)
	assert.InDelta(t, math.Pi, origin.Bearing(Point{X: -1, Y: 0}), 1e-12)
	assert.InDelta(t, -math.Pi/4, origin.Bearing(Point{X: 1, Y: -1}), 1e-12)
}

func TestCheckMonotonic(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("strictly increasing passes", func(t *testing.T) {
		tr := Trajectory{Fixes: []Fix{
			{Timestamp: base},
			{Timestamp: base.Add(time.Hour)},
			{Timestamp: base.Add(2 * time.Hour)},
		}}
		assert.NoError(t, tr.CheckMonotonic())
	})

	t.Run("duplicate timestamp reported with index", func(t *testing.T) {
		tr := Trajectory{Fixes: []Fix{
			{Timestamp: base},
			{Timestamp: base.Add(time.Hour)},
			{Timestamp: base.Add(time.Hour)},
		}}
		err := tr.CheckMonotonic()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index 2")
	})

	t.Run("empty and single fix pass", func(t *testing.T) {
		assert.NoError(t, Trajectory{}.CheckMonotonic())
		assert.NoError(t, Trajectory{Fixes: []Fix{{Timestamp: base}}}.CheckMonotonic())
	})
}

func TestCloneDoesNotAlias(t *testing.T) {
	t.Parallel()
	tr := Trajectory{ID: "a", Fixes: []Fix{{X: 1, Y: 2}}}
	cp := tr.Clone()
	cp.Fixes[0].X = 99
	assert.Equal(t, 1.0, tr.Fixes[0].X)
	assert.Equal(t, "a", cp.ID)
}

func TestReschedule(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := Trajectory{Fixes: []Fix{
		{Timestamp: start.Add(3 * time.Minute)},
		{Timestamp: start.Add(17 * time.Minute)},
		{Timestamp: start.Add(44 * time.Minute)},
	}}

	out := tr.Reschedule(start, 4*time.Hour)
	require.Len(t, out.Fixes, 3)
	for i, f := range out.Fixes {
		assert.Equal(t, start.Add(time.Duration(i)*4*time.Hour), f.Timestamp)
	}
	for _, d := range out.Intervals() {
		assert.Equal(t, 4*time.Hour, d)
	}
	// Input untouched.
	assert.Equal(t, start.Add(3*time.Minute), tr.Fixes[0].Timestamp)
}

func TestStepsAndTurns(t *testing.T) {
	t.Parallel()

	// Unit square traversed counterclockwise: three unit steps with two left
	// turns of pi/2.
	tr := Trajectory{Fixes: []Fix{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 1, Y: 1},
		{X: 0, Y: 1},
	}}

	steps := tr.Steps()
	require.Len(t, steps, 3)
	for _, s := range steps {
		assert.InDelta(t, 1, s, 1e-12)
	}

	turns := tr.Turns()
	require.Len(t, turns, 2)
	for _, a := range turns {
		assert.InDelta(t, math.Pi/2, a, 1e-12)
	}
}

func TestStepsAndTurnsShortSeries(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Trajectory{}.Steps())
	assert.Nil(t, Trajectory{Fixes: []Fix{{X: 0}}}.Steps())
	assert.Nil(t, Trajectory{Fixes: []Fix{{X: 0}, {X: 1}}}.Turns())
}

func TestIntervals(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := Trajectory{Fixes: []Fix{
		{Timestamp: base},
		{Timestamp: base.Add(4 * time.Hour)},
		{Timestamp: base.Add(12 * time.Hour)},
	}}
	assert.Equal(t, []time.Duration{4 * time.Hour, 8 * time.Hour}, tr.Intervals())
	assert.Nil(t, Trajectory{Fixes: tr.Fixes[:1]}.Intervals())
}

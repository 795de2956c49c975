package sensor

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjones029/tracksim/internal/track"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func regular(n int, cadence time.Duration) track.Trajectory {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := track.Trajectory{Fixes: make([]track.Fix, n)}
	for i := range tr.Fixes {
		tr.Fixes[i] = track.Fix{X: float64(i), Y: float64(i), Timestamp: base.Add(time.Duration(i) * cadence)}
	}
	return tr
}

func TestJitterBounds(t *testing.T) {
	t.Parallel()
	in := regular(500, 4*time.Hour)
	bound := 10 * time.Minute

	out, err := Jitter(in, bound, testRNG(42))
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())

	for i := range out.Fixes {
		offset := out.Fixes[i].Timestamp.Sub(in.Fixes[i].Timestamp)
		assert.LessOrEqual(t, offset, bound)
		assert.GreaterOrEqual(t, offset, -bound)
		assert.Zero(t, offset%time.Second, "offsets are whole seconds")
		// Positions untouched.
		assert.Equal(t, in.Fixes[i].Point(), out.Fixes[i].Point())
	}
}

func TestJitterZeroBoundIsIdentity(t *testing.T) {
	t.Parallel()
	in := regular(10, time.Hour)
	out, err := Jitter(in, 0, testRNG(1))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJitterNegativeBound(t *testing.T) {
	t.Parallel()
	_, err := Jitter(regular(5, time.Hour), -time.Second, testRNG(1))
	assert.Error(t, err)
}

func TestJitterDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := regular(20, 4*time.Hour)
	before := in.Clone()
	_, err := Jitter(in, 10*time.Minute, testRNG(3))
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestPartitionCounts(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		frac     float64
		expected int
	}{
		{"two percent of 353 rounds to 7", 353, 0.02, 7},
		{"round half up", 100, 0.025, 3},
		{"zero fraction drops nothing", 50, 0, 0},
		{"full fraction drops all", 50, 1, 50},
		{"small fraction rounds to zero", 10, 0.04, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, dropped, err := Partition(regular(tt.n, time.Hour), tt.frac, testRNG(42))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dropped.Len())
			assert.Equal(t, tt.n-tt.expected, kept.Len())
		})
	}
}

func TestPartitionIsExact(t *testing.T) {
	t.Parallel()
	in := regular(200, 4*time.Hour)

	kept, dropped, err := Partition(in, 0.1, testRNG(7))
	require.NoError(t, err)

	// Merging the halves by timestamp reproduces the input exactly: nothing
	// lost, nothing duplicated, order preserved within each half.
	merged := append(append([]track.Fix(nil), kept.Fixes...), dropped.Fixes...)
	seen := make(map[time.Time]int)
	for _, f := range merged {
		seen[f.Timestamp]++
	}
	require.Len(t, merged, in.Len())
	for _, f := range in.Fixes {
		assert.Equal(t, 1, seen[f.Timestamp])
	}
	assert.NoError(t, kept.CheckMonotonic())
	assert.NoError(t, dropped.CheckMonotonic())
}

func TestPartitionBadFraction(t *testing.T) {
	t.Parallel()
	for _, frac := range []float64{-0.1, 1.1} {
		_, _, err := Partition(regular(10, time.Hour), frac, testRNG(1))
		assert.Error(t, err)
	}
}

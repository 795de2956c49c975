package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjones029/tracksim/internal/track"
)

func hourly4() Config {
	return Config{Cadence: 4 * time.Hour, Tolerance: 15 * time.Minute}
}

func TestRound(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		in       time.Time
		expected time.Time
	}{
		{"just below half rounds down", day.Add(10*time.Hour + 29*time.Minute + 59*time.Second), day.Add(10 * time.Hour)},
		{"exact half rounds up", day.Add(10*time.Hour + 30*time.Minute), day.Add(11 * time.Hour)},
		{"just above half rounds up", day.Add(10*time.Hour + 30*time.Minute + 1*time.Second), day.Add(11 * time.Hour)},
		{"carries across midnight", day.Add(23*time.Hour + 31*time.Minute), day.Add(24 * time.Hour)},
		{"already aligned is unchanged", day.Add(8 * time.Hour), day.Add(8 * time.Hour)},
		{"sub-second below half", day.Add(29*time.Minute + 59*time.Second + 999*time.Millisecond), day},
	}
	cfg := hourly4()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.Round(tt.in)
			assert.Equal(t, tt.expected, got)
			// Rounding an already-rounded time is a no-op.
			assert.Equal(t, got, cfg.Round(got))
		})
	}
}

func TestRoundGranularityDefaults(t *testing.T) {
	t.Parallel()

	t.Run("whole-hour cadence rounds to the hour", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, time.Hour, hourly4().roundTo())
	})

	t.Run("sub-hour cadence rounds to the cadence", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Cadence: 30 * time.Minute}
		assert.Equal(t, 30*time.Minute, cfg.roundTo())

		in := time.Date(2024, 6, 1, 10, 14, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), cfg.Round(in))
	})

	t.Run("explicit granularity wins", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Cadence: 4 * time.Hour, RoundTo: 2 * time.Hour}
		in := time.Date(2024, 6, 1, 10, 59, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), cfg.Round(in))
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", hourly4(), false},
		{"zero cadence", Config{}, true},
		{"negative tolerance", Config{Cadence: time.Hour, Tolerance: -time.Second}, true},
		{"granularity must divide cadence", Config{Cadence: 4 * time.Hour, RoundTo: 3 * time.Hour}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegularize(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	in := track.Trajectory{Fixes: []track.Fix{
		{X: 0, Y: 0, Timestamp: base.Add(3 * time.Minute)},
		{X: 1, Y: 1, Timestamp: base.Add(4*time.Hour - 10*time.Minute)},
		{X: 2, Y: 2, Timestamp: base.Add(8*time.Hour + 25*time.Minute)},
		{X: 3, Y: 3, Timestamp: base.Add(12*time.Hour + 2*time.Minute)},
	}}

	res, err := Regularize(in, hourly4())
	require.NoError(t, err)

	want := []time.Time{base, base.Add(4 * time.Hour), base.Add(8 * time.Hour), base.Add(12 * time.Hour)}
	for i, f := range res.Trajectory.Fixes {
		assert.Equal(t, want[i], f.Timestamp)
		assert.Equal(t, in.Fixes[i].Point(), f.Point(), "positions must be untouched")
	}

	// Only the 25-minute drift exceeds the 15-minute tolerance; the run still
	// completes with the rest of the fixes rounded.
	require.Len(t, res.Flags, 1)
	assert.Equal(t, 2, res.Flags[0].Index)
	assert.Equal(t, 25*time.Minute, res.Flags[0].Drift)
	assert.Equal(t, 25*time.Minute, res.MaxDrift)

	require.Len(t, res.Intervals, 1)
	assert.Equal(t, track.IntervalBin{Interval: 4 * time.Hour, Count: 3}, res.Intervals[0])
}

func TestRegularizeInvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := Regularize(track.Trajectory{}, Config{})
	assert.Error(t, err)
}

func TestRegularizeGapShowsDoubleBin(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	in := track.Trajectory{Fixes: []track.Fix{
		{Timestamp: base},
		{Timestamp: base.Add(4 * time.Hour)},
		// 8h slot missing.
		{Timestamp: base.Add(12 * time.Hour)},
	}}

	res, err := Regularize(in, hourly4())
	require.NoError(t, err)
	require.Len(t, res.Intervals, 2)
	assert.Equal(t, track.IntervalBin{Interval: 4 * time.Hour, Count: 1}, res.Intervals[0])
	assert.Equal(t, track.IntervalBin{Interval: 8 * time.Hour, Count: 1}, res.Intervals[1])
}

func TestTimeline(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cadence := 4 * time.Hour

	t.Run("marks missing slots", func(t *testing.T) {
		t.Parallel()
		in := track.Trajectory{Fixes: []track.Fix{
			{X: 0, Timestamp: base},
			{X: 3, Timestamp: base.Add(3 * cadence)},
			{X: 4, Timestamp: base.Add(4 * cadence)},
		}}

		slots, err := Timeline(in, cadence)
		require.NoError(t, err)
		require.Len(t, slots, 5)

		for i, s := range slots {
			assert.Equal(t, base.Add(time.Duration(i)*cadence), s.Time)
		}
		assert.NotNil(t, slots[0].Fix)
		assert.Nil(t, slots[1].Fix)
		assert.Nil(t, slots[2].Fix)
		assert.NotNil(t, slots[3].Fix)
		assert.NotNil(t, slots[4].Fix)
		assert.Equal(t, 3.0, slots[3].Fix.X)
	})

	t.Run("rejects unaligned fixes", func(t *testing.T) {
		t.Parallel()
		in := track.Trajectory{Fixes: []track.Fix{
			{Timestamp: base},
			{Timestamp: base.Add(cadence + time.Minute)},
		}}
		_, err := Timeline(in, cadence)
		assert.Error(t, err)
	})

	t.Run("empty input yields no slots", func(t *testing.T) {
		t.Parallel()
		slots, err := Timeline(track.Trajectory{}, cadence)
		require.NoError(t, err)
		assert.Nil(t, slots)
	})

	t.Run("rejects bad cadence", func(t *testing.T) {
		t.Parallel()
		_, err := Timeline(track.Trajectory{}, 0)
		assert.Error(t, err)
	})
}

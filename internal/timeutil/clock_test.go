package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	target := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	clock.Set(target)
	if got := clock.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(4 * time.Hour)
	want := start.Add(4 * time.Hour)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}

	clock.Advance(-time.Hour)
	want = want.Add(-time.Hour)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after negative Advance = %v, want %v", got, want)
	}
}

func TestMockClock_Since(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(90 * time.Minute)

	if got := clock.Since(start); got != 90*time.Minute {
		t.Errorf("Since() = %v, want 90m", got)
	}
}

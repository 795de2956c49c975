// Package sensor degrades an ideally-scheduled trajectory the way a real GPS
// collar would: bounded timestamp jitter and randomly missed fixes.
package sensor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/mjones029/tracksim/internal/track"
)

// Jitter returns a copy of t with each timestamp independently perturbed by a
// uniformly drawn whole-second offset in [-bound, +bound]. The bound must be
// small relative to the nominal spacing so perturbed fixes cannot reorder;
// that is the caller's precondition, not enforced here.
func Jitter(t track.Trajectory, bound time.Duration, rng *rand.Rand) (track.Trajectory, error) {
	if bound < 0 {
		return track.Trajectory{}, fmt.Errorf("jitter bound must be non-negative, got %s", bound)
	}
	out := t.Clone()
	if bound == 0 {
		return out, nil
	}
	span := int(bound / time.Second)
	for i := range out.Fixes {
		offset := rng.IntN(2*span+1) - span
		out.Fixes[i].Timestamp = out.Fixes[i].Timestamp.Add(time.Duration(offset) * time.Second)
	}
	return out, nil
}

// Partition splits t into a kept subsequence and a dropped subsequence from a
// single random draw. The dropped subsequence holds round(frac * n) fixes
// selected uniformly without replacement; both halves preserve the original
// order and together partition t exactly.
func Partition(t track.Trajectory, frac float64, rng *rand.Rand) (kept, dropped track.Trajectory, err error) {
	if frac < 0 || frac > 1 {
		return track.Trajectory{}, track.Trajectory{}, fmt.Errorf("drop fraction %g outside [0, 1]", frac)
	}
	n := len(t.Fixes)
	k := int(math.Round(frac * float64(n)))

	perm := rng.Perm(n)
	dropIdx := append([]int(nil), perm[:k]...)
	sort.Ints(dropIdx)

	kept = track.Trajectory{ID: t.ID}
	dropped = track.Trajectory{ID: t.ID}
	j := 0
	for i, f := range t.Fixes {
		if j < len(dropIdx) && dropIdx[j] == i {
			dropped.Fixes = append(dropped.Fixes, f)
			j++
		} else {
			kept.Fixes = append(kept.Fixes, f)
		}
	}
	return kept, dropped, nil
}

// Package pipeline runs the full simulation chain: multi-phase walk
// generation, sensor degradation, schedule regularization, gap interpolation,
// and behavioural-state estimation. The interpolation and estimation stages
// are pluggable collaborators; the built-in implementations live in
// internal/interp and internal/hmm.
package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/mjones029/tracksim/internal/hmm"
	"github.com/mjones029/tracksim/internal/interp"
	"github.com/mjones029/tracksim/internal/monitoring"
	"github.com/mjones029/tracksim/internal/schedule"
	"github.com/mjones029/tracksim/internal/sensor"
	"github.com/mjones029/tracksim/internal/sim"
	"github.com/mjones029/tracksim/internal/timeutil"
	"github.com/mjones029/tracksim/internal/track"
)

// Interpolator fills missing cadence slots with position estimates.
type Interpolator interface {
	Fill(slots []schedule.Slot) (track.Trajectory, error)
}

// StateEstimator assigns behavioural states to a regular step/turn series.
type StateEstimator interface {
	Fit(steps, turns []float64) (*hmm.Result, error)
}

// HMMEstimator adapts the built-in hmm package to the StateEstimator slot.
type HMMEstimator struct {
	Config hmm.Config
}

// Fit runs the configured fit.
func (e HMMEstimator) Fit(steps, turns []float64) (*hmm.Result, error) {
	return hmm.Fit(steps, turns, e.Config)
}

// Config describes one simulation run end to end.
type Config struct {
	// Seed initialises the run's pseudo-random stream. The same seed and
	// parameters always reproduce the identical run.
	Seed uint64

	// Phases and Schedule drive walk generation and the global fix schedule.
	Phases   []sim.Phase
	Schedule sim.Schedule

	// Jitter bounds the per-fix timestamp perturbation; DropFraction is the
	// fraction of fixes the simulated collar loses.
	Jitter       time.Duration
	DropFraction float64

	// Regularizer is the nominal schedule the degraded fixes are mapped back
	// onto. A zero Cadence inherits Schedule.Cadence.
	Regularizer schedule.Config

	// Interpolator fills cadence gaps; nil uses linear interpolation.
	Interpolator Interpolator

	// Estimator assigns behavioural states; nil skips state estimation.
	Estimator StateEstimator

	// Clock stamps the run record; nil uses the real clock.
	Clock timeutil.Clock
}

// Run is the output of one executed simulation.
type Run struct {
	ID        string    `json:"id"`
	Seed      uint64    `json:"seed"`
	CreatedAt time.Time `json:"created_at"`

	// Composition is the clean multi-phase trajectory before degradation.
	Composition sim.Composition `json:"composition"`

	// Kept and Dropped partition the jittered trajectory.
	Kept    track.Trajectory `json:"kept"`
	Dropped track.Trajectory `json:"dropped"`

	// Regularized carries the rounded trajectory, drift flags, and the
	// fix-interval histogram.
	Regularized schedule.Result `json:"regularized"`

	// Interpolated is the gap-free trajectory handed to state estimation.
	Interpolated track.Trajectory `json:"interpolated"`

	// States is nil when no estimator was configured.
	States *hmm.Result `json:"states,omitempty"`

	Summary track.Summary `json:"summary"`
}

// Execute runs the pipeline for one configuration.
func Execute(cfg Config) (*Run, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	comp, err := sim.ComposePhases(cfg.Phases, cfg.Schedule, rng)
	if err != nil {
		return nil, fmt.Errorf("compose phases: %w", err)
	}

	jittered, err := sensor.Jitter(comp.Trajectory, cfg.Jitter, rng)
	if err != nil {
		return nil, fmt.Errorf("jitter: %w", err)
	}
	kept, dropped, err := sensor.Partition(jittered, cfg.DropFraction, rng)
	if err != nil {
		return nil, fmt.Errorf("partition drops: %w", err)
	}

	regCfg := cfg.Regularizer
	if regCfg.Cadence == 0 {
		regCfg.Cadence = cfg.Schedule.Cadence
	}
	reg, err := schedule.Regularize(kept, regCfg)
	if err != nil {
		return nil, fmt.Errorf("regularize: %w", err)
	}
	if len(reg.Flags) > 0 {
		monitoring.Logf("run seed %d: %d of %d fixes drifted beyond tolerance (max drift %s)",
			cfg.Seed, len(reg.Flags), reg.Trajectory.Len(), reg.MaxDrift)
	}

	slots, err := schedule.Timeline(reg.Trajectory, regCfg.Cadence)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	ip := cfg.Interpolator
	if ip == nil {
		ip = interp.Linear{}
	}
	full, err := ip.Fill(slots)
	if err != nil {
		return nil, fmt.Errorf("interpolate: %w", err)
	}

	run := &Run{
		ID:           uuid.NewString(),
		Seed:         cfg.Seed,
		CreatedAt:    clock.Now().UTC(),
		Composition:  comp,
		Kept:         kept,
		Dropped:      dropped,
		Regularized:  reg,
		Interpolated: full,
		Summary:      track.Summarize(full),
	}

	if cfg.Estimator != nil {
		states, err := cfg.Estimator.Fit(full.Steps(), full.Turns())
		if err != nil {
			return nil, fmt.Errorf("state estimation: %w", err)
		}
		run.States = states
	}
	return run, nil
}

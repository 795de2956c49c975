// Package config loads simulation scenario files. The schema matches the
// /api/simulate request body so the same JSON drives both the batch CLI and
// the API; omitted fields fall back to the reference scenario defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mjones029/tracksim/internal/hmm"
	"github.com/mjones029/tracksim/internal/pipeline"
	"github.com/mjones029/tracksim/internal/schedule"
	"github.com/mjones029/tracksim/internal/sim"
	"github.com/mjones029/tracksim/internal/track"
	"github.com/mjones029/tracksim/internal/units"
)

// PhaseConfig configures one walk phase. Start is required for the first
// phase; on later phases a supplied Start asserts the handoff from the
// previous phase and fails the run if it disagrees.
type PhaseConfig struct {
	Steps          *int     `json:"steps,omitempty"`
	StepScale      *float64 `json:"step_scale,omitempty"`
	Rho            *float64 `json:"rho,omitempty"`
	Bias           *float64 `json:"bias,omitempty"`
	DistDecay      *float64 `json:"dist_decay,omitempty"`
	Start          []float64 `json:"start,omitempty"`
	Attractor      []float64 `json:"attractor,omitempty"`
	RetainBoundary *bool    `json:"retain_boundary,omitempty"`
}

// StateConfig supplies initial emission parameters for one behavioural state.
// TurnMean is in radians; TurnMeanDeg accepts degrees instead and wins when
// both are set.
type StateConfig struct {
	StepMean          *float64 `json:"step_mean,omitempty"`
	StepSD            *float64 `json:"step_sd,omitempty"`
	TurnMean          *float64 `json:"turn_mean,omitempty"`
	TurnMeanDeg       *float64 `json:"turn_mean_deg,omitempty"`
	TurnConcentration *float64 `json:"turn_concentration,omitempty"`
}

// Scenario is the root configuration for one simulation run.
type Scenario struct {
	Seed          *uint64       `json:"seed,omitempty"`
	StartTime     *string       `json:"start_time,omitempty"`     // RFC3339, hour-aligned
	Cadence       *string       `json:"cadence,omitempty"`        // duration string like "4h"
	RoundTo       *string       `json:"round_to,omitempty"`       // duration string like "1h"
	Tolerance     *string       `json:"tolerance,omitempty"`      // duration string like "15m"
	JitterSeconds *int          `json:"jitter_seconds,omitempty"`
	DropFraction  *float64      `json:"drop_fraction,omitempty"`
	Phases        []PhaseConfig `json:"phases,omitempty"`
	States        []StateConfig `json:"states,omitempty"`
	MaxIterations *int          `json:"max_iterations,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrString(v string) *string    { return &v }

// DefaultScenario returns the reference three-phase scenario: an outbound
// biased walk, a localized foraging phase, and a return leg, degraded with
// ±10 minute jitter and 2% dropped fixes on a 4-hour schedule.
func DefaultScenario() *Scenario {
	return &Scenario{
		Seed:          ptrUint64(42),
		StartTime:     ptrString("2024-06-01T00:00:00Z"),
		Cadence:       ptrString("4h"),
		Tolerance:     ptrString("15m"),
		JitterSeconds: ptrInt(600),
		DropFraction:  ptrFloat64(0.02),
		Phases: []PhaseConfig{
			{
				Steps:     ptrInt(100),
				StepScale: ptrFloat64(2),
				Rho:       ptrFloat64(0.8),
				Bias:      ptrFloat64(1),
				DistDecay: ptrFloat64(0.1),
				Start:     []float64{0, 0},
				Attractor: []float64{80, 120},
			},
			{
				Steps:     ptrInt(152),
				StepScale: ptrFloat64(0.5),
				Rho:       ptrFloat64(0.2),
				Bias:      ptrFloat64(2),
				DistDecay: ptrFloat64(0.5),
				Attractor: []float64{80, 120},
			},
			{
				Steps:     ptrInt(100),
				StepScale: ptrFloat64(2),
				Rho:       ptrFloat64(0.8),
				Bias:      ptrFloat64(1),
				DistDecay: ptrFloat64(0.1),
				Attractor: []float64{0, 0},
			},
		},
		States: []StateConfig{
			{
				StepMean:          ptrFloat64(1),
				StepSD:            ptrFloat64(0.8),
				TurnMean:          ptrFloat64(0),
				TurnConcentration: ptrFloat64(0.1),
			},
			{
				StepMean:          ptrFloat64(4),
				StepSD:            ptrFloat64(2),
				TurnMean:          ptrFloat64(0),
				TurnConcentration: ptrFloat64(0.7),
			},
		},
	}
}

// LoadScenario loads a Scenario from a JSON file. Fields omitted from the
// file keep the reference defaults, so partial scenarios are safe.
func LoadScenario(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scenario file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// ParseScenario decodes a scenario from raw JSON (the API request body path).
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks field shapes that JSON decoding cannot: duration strings,
// timestamp format, and coordinate pair lengths. Numeric range checks belong
// to the pipeline stages themselves.
func (s *Scenario) Validate() error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"cadence", s.Cadence},
		{"round_to", s.RoundTo},
		{"tolerance", s.Tolerance},
	} {
		if f.value == nil {
			continue
		}
		if _, err := time.ParseDuration(*f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if s.StartTime != nil {
		if _, err := time.Parse(time.RFC3339, *s.StartTime); err != nil {
			return fmt.Errorf("start_time: %w", err)
		}
	}
	for i, ph := range s.Phases {
		if len(ph.Start) != 0 && len(ph.Start) != 2 {
			return fmt.Errorf("phase %d: start must be [x, y], got %d values", i, len(ph.Start))
		}
		if len(ph.Attractor) != 0 && len(ph.Attractor) != 2 {
			return fmt.Errorf("phase %d: attractor must be [x, y], got %d values", i, len(ph.Attractor))
		}
	}
	return nil
}

func (s *Scenario) seed() uint64 {
	if s.Seed != nil {
		return *s.Seed
	}
	return 42
}

func (s *Scenario) duration(v *string, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		// Validate rejects unparseable values before this point.
		return def
	}
	return d
}

func (s *Scenario) startTime() time.Time {
	if s.StartTime != nil {
		if t, err := time.Parse(time.RFC3339, *s.StartTime); err == nil {
			return t.UTC()
		}
	}
	t, _ := time.Parse(time.RFC3339, "2024-06-01T00:00:00Z")
	return t
}

func orFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func point(v []float64) track.Point {
	if len(v) == 2 {
		return track.Point{X: v[0], Y: v[1]}
	}
	return track.Point{}
}

// PipelineConfig resolves the scenario into a runnable pipeline
// configuration.
func (s *Scenario) PipelineConfig() (pipeline.Config, error) {
	base := DefaultScenario()
	phases := s.Phases
	if len(phases) == 0 {
		phases = base.Phases
	}
	states := s.States
	if len(states) == 0 {
		states = base.States
	}

	cfg := pipeline.Config{
		Seed: s.seed(),
		Schedule: sim.Schedule{
			Start:   s.startTime(),
			Cadence: s.duration(s.Cadence, 4*time.Hour),
		},
		Jitter:       time.Duration(orInt(s.JitterSeconds, 600)) * time.Second,
		DropFraction: orFloat(s.DropFraction, 0.02),
		Regularizer: schedule.Config{
			Cadence:   s.duration(s.Cadence, 4*time.Hour),
			RoundTo:   s.duration(s.RoundTo, 0),
			Tolerance: s.duration(s.Tolerance, 15*time.Minute),
		},
	}

	for i, ph := range phases {
		p := sim.Phase{
			Params: sim.Params{
				Steps:     orInt(ph.Steps, 100),
				StepScale: orFloat(ph.StepScale, 1),
				Rho:       orFloat(ph.Rho, 0.8),
				Bias:      orFloat(ph.Bias, 0),
				DistDecay: orFloat(ph.DistDecay, 0),
				Start:     point(ph.Start),
				Attractor: point(ph.Attractor),
			},
		}
		if i > 0 && len(ph.Start) == 2 {
			p.ExplicitStart = true
		}
		if ph.RetainBoundary != nil {
			p.RetainBoundary = *ph.RetainBoundary
		}
		cfg.Phases = append(cfg.Phases, p)
	}

	if len(states) > 0 {
		est := pipeline.HMMEstimator{Config: hmm.Config{MaxIterations: orInt(s.MaxIterations, 0)}}
		for _, st := range states {
			turnMean := orFloat(st.TurnMean, 0)
			if st.TurnMeanDeg != nil {
				turnMean = units.Radians(*st.TurnMeanDeg)
			}
			est.Config.States = append(est.Config.States, hmm.StateParams{
				StepMean:          orFloat(st.StepMean, 1),
				StepSD:            orFloat(st.StepSD, 1),
				TurnMean:          turnMean,
				TurnConcentration: orFloat(st.TurnConcentration, 0.5),
			})
		}
		cfg.Estimator = est
	}

	return cfg, nil
}

func orInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

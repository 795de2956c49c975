// Package hmm fits a discrete behavioural-state model to the step-length and
// turning-angle series of a regular trajectory. States emit gamma-distributed
// step lengths and wrapped-Cauchy turning angles; parameters are refined from
// supplied initial values by Baum-Welch with a moment-matching M-step, and
// the most likely state sequence is decoded with Viterbi.
package hmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrBadInit marks an estimator configuration rejected before fitting.
var ErrBadInit = errors.New("invalid state model initialisation")

// minStep floors step lengths so gamma densities stay finite for stationary
// fixes (duplicate positions produce zero-length steps).
const minStep = 1e-9

// StateParams describes one behavioural state's emission distributions:
// gamma step lengths (by mean and standard deviation) and wrapped-Cauchy
// turning angles (by mean direction and concentration in [0, 1)).
type StateParams struct {
	StepMean          float64 `json:"step_mean"`
	StepSD            float64 `json:"step_sd"`
	TurnMean          float64 `json:"turn_mean"`
	TurnConcentration float64 `json:"turn_concentration"`
}

func (s StateParams) validate(i int) error {
	if s.StepMean <= 0 || s.StepSD <= 0 {
		return fmt.Errorf("%w: state %d: step mean and sd must be positive", ErrBadInit, i)
	}
	if s.TurnConcentration < 0 || s.TurnConcentration >= 1 {
		return fmt.Errorf("%w: state %d: turn concentration %g outside [0, 1)", ErrBadInit, i, s.TurnConcentration)
	}
	return nil
}

// Config configures a fit.
type Config struct {
	// States supplies the candidate state count and initial parameters.
	States []StateParams

	// MaxIterations bounds the Baum-Welch refinement. Zero means 100.
	MaxIterations int

	// Tolerance stops iteration once the log-likelihood improves by less.
	// Zero means 1e-6.
	Tolerance float64
}

// Result is a fitted model.
type Result struct {
	States        []StateParams `json:"states"`
	Initial       []float64     `json:"initial"`
	Transition    [][]float64   `json:"transition"`
	Labels        []int         `json:"labels"`
	LogLikelihood float64       `json:"log_likelihood"`
	AIC           float64       `json:"aic"`
	Iterations    int           `json:"iterations"`
}

// Fit estimates the model from a step-length series and its turning-angle
// series (len(turns) == len(steps)-1; the first step has no defined turn).
func Fit(steps, turns []float64, cfg Config) (*Result, error) {
	n := len(cfg.States)
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one state", ErrBadInit)
	}
	for i, s := range cfg.States {
		if err := s.validate(i); err != nil {
			return nil, err
		}
	}
	T := len(steps)
	if T < 2 {
		return nil, fmt.Errorf("%w: need at least two steps, got %d", ErrBadInit, T)
	}
	if len(turns) != T-1 {
		return nil, fmt.Errorf("%w: got %d turns for %d steps, want %d", ErrBadInit, len(turns), T, T-1)
	}

	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 100
	}
	tol := cfg.Tolerance
	if tol == 0 {
		tol = 1e-6
	}

	obs := make([]float64, T)
	for t, s := range steps {
		obs[t] = math.Max(s, minStep)
	}

	m := &model{
		states:  append([]StateParams(nil), cfg.States...),
		initial: make([]float64, n),
		trans:   make([][]float64, n),
	}
	// Uninformative starting point: uniform initial distribution, sticky
	// transitions so states persist across consecutive fixes.
	for i := range m.initial {
		m.initial[i] = 1 / float64(n)
		m.trans[i] = make([]float64, n)
		for j := range m.trans[i] {
			if i == j {
				m.trans[i][j] = 0.9
			} else {
				m.trans[i][j] = 0.1 / math.Max(float64(n-1), 1)
			}
		}
	}
	if n == 1 {
		m.trans[0][0] = 1
	}

	var logLik float64
	var iter int
	prev := math.Inf(-1)
	for iter = 1; iter <= maxIter; iter++ {
		logLik = m.step(obs, turns)
		if logLik-prev < tol && iter > 1 {
			break
		}
		prev = logLik
	}

	labels := m.viterbi(obs, turns)

	// Free parameters: transitions n(n-1), initial n-1, four emission
	// parameters per state.
	k := float64(n*(n-1) + (n - 1) + 4*n)
	return &Result{
		States:        m.states,
		Initial:       m.initial,
		Transition:    m.trans,
		Labels:        labels,
		LogLikelihood: logLik,
		AIC:           -2*logLik + 2*k,
		Iterations:    iter,
	}, nil
}

type model struct {
	states  []StateParams
	initial []float64
	trans   [][]float64
}

// density returns the emission density of observation t in state i. The
// first observation carries no turning angle and is scored on step length
// alone.
func (m *model) density(t int, i int, steps, turns []float64) float64 {
	s := m.states[i]
	alpha := (s.StepMean / s.StepSD) * (s.StepMean / s.StepSD)
	rate := s.StepMean / (s.StepSD * s.StepSD)
	g := distuv.Gamma{Alpha: alpha, Beta: rate}
	d := g.Prob(steps[t])
	if t > 0 {
		d *= wrappedCauchyPDF(turns[t-1], s.TurnMean, s.TurnConcentration)
	}
	if d < 1e-300 || math.IsNaN(d) {
		d = 1e-300
	}
	return d
}

// wrappedCauchyPDF is the wrapped Cauchy density at theta with mean direction
// mu and concentration rho.
func wrappedCauchyPDF(theta, mu, rho float64) float64 {
	return (1 - rho*rho) / (2 * math.Pi * (1 + rho*rho - 2*rho*math.Cos(theta-mu)))
}

// step runs one scaled forward-backward pass and re-estimates all parameters
// in place, returning the log-likelihood under the pre-update parameters.
func (m *model) step(steps, turns []float64) float64 {
	n := len(m.states)
	T := len(steps)

	b := make([][]float64, T)
	for t := range b {
		b[t] = make([]float64, n)
		for i := 0; i < n; i++ {
			b[t][i] = m.density(t, i, steps, turns)
		}
	}

	// Scaled forward pass.
	fwd := make([][]float64, T)
	scale := make([]float64, T)
	fwd[0] = make([]float64, n)
	for i := 0; i < n; i++ {
		fwd[0][i] = m.initial[i] * b[0][i]
		scale[0] += fwd[0][i]
	}
	for i := 0; i < n; i++ {
		fwd[0][i] /= scale[0]
	}
	for t := 1; t < T; t++ {
		fwd[t] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += fwd[t-1][i] * m.trans[i][j]
			}
			fwd[t][j] = sum * b[t][j]
			scale[t] += fwd[t][j]
		}
		for j := 0; j < n; j++ {
			fwd[t][j] /= scale[t]
		}
	}

	// Scaled backward pass with the forward scales.
	bwd := make([][]float64, T)
	bwd[T-1] = make([]float64, n)
	for i := 0; i < n; i++ {
		bwd[T-1][i] = 1
	}
	for t := T - 2; t >= 0; t-- {
		bwd[t] = make([]float64, n)
		for i := 0; i < n; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				sum += m.trans[i][j] * b[t+1][j] * bwd[t+1][j]
			}
			bwd[t][i] = sum / scale[t+1]
		}
	}

	// State occupancy and transition expectations.
	gamma := make([][]float64, T)
	for t := 0; t < T; t++ {
		gamma[t] = make([]float64, n)
		var norm float64
		for i := 0; i < n; i++ {
			gamma[t][i] = fwd[t][i] * bwd[t][i]
			norm += gamma[t][i]
		}
		for i := 0; i < n; i++ {
			gamma[t][i] /= norm
		}
	}

	xiSum := make([][]float64, n)
	for i := range xiSum {
		xiSum[i] = make([]float64, n)
	}
	for t := 0; t < T-1; t++ {
		var norm float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				norm += fwd[t][i] * m.trans[i][j] * b[t+1][j] * bwd[t+1][j]
			}
		}
		if norm == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				xiSum[i][j] += fwd[t][i] * m.trans[i][j] * b[t+1][j] * bwd[t+1][j] / norm
			}
		}
	}

	m.reestimate(gamma, xiSum, steps, turns)

	var logLik float64
	for t := 0; t < T; t++ {
		logLik += math.Log(scale[t])
	}
	return logLik
}

// reestimate applies the moment-matching M-step.
func (m *model) reestimate(gamma [][]float64, xiSum [][]float64, steps, turns []float64) {
	n := len(m.states)
	T := len(steps)

	for i := 0; i < n; i++ {
		m.initial[i] = gamma[0][i]
	}

	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += xiSum[i][j]
		}
		if rowSum == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			m.trans[i][j] = xiSum[i][j] / rowSum
		}
	}

	for i := 0; i < n; i++ {
		// Gamma step-length parameters by weighted moments.
		var w, mean float64
		for t := 0; t < T; t++ {
			w += gamma[t][i]
			mean += gamma[t][i] * steps[t]
		}
		if w == 0 {
			continue
		}
		mean /= w
		var variance float64
		for t := 0; t < T; t++ {
			d := steps[t] - mean
			variance += gamma[t][i] * d * d
		}
		variance /= w
		if mean > 0 && variance > 0 {
			m.states[i].StepMean = mean
			m.states[i].StepSD = math.Sqrt(variance)
		}

		// Wrapped-Cauchy turn parameters from the weighted mean resultant
		// vector (turns exist for t >= 1).
		var wTurn, c, s float64
		for t := 1; t < T; t++ {
			wTurn += gamma[t][i]
			c += gamma[t][i] * math.Cos(turns[t-1])
			s += gamma[t][i] * math.Sin(turns[t-1])
		}
		if wTurn == 0 {
			continue
		}
		r := math.Hypot(c, s) / wTurn
		m.states[i].TurnMean = math.Atan2(s, c)
		m.states[i].TurnConcentration = math.Min(r, 0.999)
	}
}

// viterbi decodes the most likely state sequence in log space.
func (m *model) viterbi(steps, turns []float64) []int {
	n := len(m.states)
	T := len(steps)

	logTrans := make([][]float64, n)
	for i := range logTrans {
		logTrans[i] = make([]float64, n)
		for j := range logTrans[i] {
			logTrans[i][j] = math.Log(m.trans[i][j])
		}
	}

	v := make([][]float64, T)
	back := make([][]int, T)
	v[0] = make([]float64, n)
	back[0] = make([]int, n)
	for i := 0; i < n; i++ {
		v[0][i] = math.Log(m.initial[i]) + math.Log(m.density(0, i, steps, turns))
	}
	for t := 1; t < T; t++ {
		v[t] = make([]float64, n)
		back[t] = make([]int, n)
		for j := 0; j < n; j++ {
			best := math.Inf(-1)
			bestI := 0
			for i := 0; i < n; i++ {
				if cand := v[t-1][i] + logTrans[i][j]; cand > best {
					best = cand
					bestI = i
				}
			}
			v[t][j] = best + math.Log(m.density(t, j, steps, turns))
			back[t][j] = bestI
		}
	}

	labels := make([]int, T)
	best := math.Inf(-1)
	for i := 0; i < n; i++ {
		if v[T-1][i] > best {
			best = v[T-1][i]
			labels[T-1] = i
		}
	}
	for t := T - 2; t >= 0; t-- {
		labels[t] = back[t+1][labels[t+1]]
	}
	return labels
}

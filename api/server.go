// Package api exposes stored simulation runs and a simulate endpoint over
// HTTP/JSON.
package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/mjones029/tracksim/internal/config"
	"github.com/mjones029/tracksim/internal/httputil"
	"github.com/mjones029/tracksim/internal/pipeline"
	"github.com/mjones029/tracksim/internal/report"
	"github.com/mjones029/tracksim/internal/timeutil"
	"github.com/mjones029/tracksim/internal/trackdb"
	"github.com/mjones029/tracksim/internal/units"
)

type Server struct {
	db    *trackdb.DB
	clock timeutil.Clock
}

func NewServer(db *trackdb.DB, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		db:    db,
		clock: clock,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/simulate", s.simulate)
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/fixes", s.listFixes)
	mux.HandleFunc("/drift", s.listDrift)
	mux.HandleFunc("/intervals", s.listIntervals)
	mux.HandleFunc("/charts/path", s.pathChart)
	mux.HandleFunc("/charts/intervals", s.intervalChart)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Track Simulation Server!"))
}

// SimulateResponse summarises one completed run.
type SimulateResponse struct {
	ID            string   `json:"id"`
	Seed          uint64   `json:"seed"`
	FixCount      int      `json:"fix_count"`
	DriftFlags    int      `json:"drift_flags"`
	MaxDrift      string   `json:"max_drift"`
	PathLength    float64  `json:"path_length_m"`
	LogLikelihood *float64 `json:"log_likelihood,omitempty"`
	AIC           *float64 `json:"aic,omitempty"`
}

// simulate runs the full pipeline from a scenario JSON body and stores the
// result. An empty body runs the reference scenario.
func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	scenario, err := config.ParseScenario(body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cfg, err := scenario.PipelineConfig()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cfg.Clock = s.clock

	run, err := pipeline.Execute(cfg)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("simulation failed: %v", err))
		return
	}
	if err := s.db.SaveRun(run, body); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to store run: %v", err))
		return
	}

	resp := SimulateResponse{
		ID:         run.ID,
		Seed:       run.Seed,
		FixCount:   run.Interpolated.Len(),
		DriftFlags: len(run.Regularized.Flags),
		MaxDrift:   run.Regularized.MaxDrift.String(),
		PathLength: run.Summary.PathLength,
	}
	if run.States != nil {
		resp.LogLikelihood = &run.States.LogLikelihood
		resp.AIC = &run.States.AIC
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.db.Runs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// runParam extracts the run ID query parameter common to the per-run routes.
func (s *Server) runParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing id parameter")
		return "", false
	}
	return id, true
}

func stageParam(r *http.Request) trackdb.Stage {
	if st := r.URL.Query().Get("stage"); st != "" {
		return trackdb.Stage(st)
	}
	return trackdb.StageInterpolated
}

func (s *Server) listFixes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, ok := s.runParam(w, r)
	if !ok {
		return
	}
	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.M
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q, must be one of: %s", unit, units.GetValidUnitsString()))
		return
	}
	fixes, err := s.db.Fixes(id, stageParam(r))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve fixes: %v", err))
		return
	}
	for i := range fixes {
		fixes[i].X = units.ConvertDistance(fixes[i].X, unit)
		fixes[i].Y = units.ConvertDistance(fixes[i].Y, unit)
	}
	httputil.WriteJSONOK(w, fixes)
}

func (s *Server) listDrift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, ok := s.runParam(w, r)
	if !ok {
		return
	}
	flags, err := s.db.DriftFlags(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve drift flags: %v", err))
		return
	}
	httputil.WriteJSONOK(w, flags)
}

func (s *Server) listIntervals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, ok := s.runParam(w, r)
	if !ok {
		return
	}
	bins, err := s.db.Intervals(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve intervals: %v", err))
		return
	}
	httputil.WriteJSONOK(w, bins)
}

func (s *Server) pathChart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runParam(w, r)
	if !ok {
		return
	}
	stage := stageParam(r)
	traj, err := s.db.Trajectory(id, stage)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load trajectory: %v", err))
		return
	}
	if traj.Len() == 0 {
		httputil.NotFound(w, "no fixes for run/stage")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderPathHTML(w, fmt.Sprintf("run %s (%s)", id, stage), []report.NamedTrajectory{
		{Name: string(stage), Trajectory: traj},
	}); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
	}
}

func (s *Server) intervalChart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runParam(w, r)
	if !ok {
		return
	}
	bins, err := s.db.Intervals(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve intervals: %v", err))
		return
	}
	if len(bins) == 0 {
		httputil.NotFound(w, "no intervals for run")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderIntervalHTML(w, fmt.Sprintf("fix intervals, run %s", id), bins); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
	}
}

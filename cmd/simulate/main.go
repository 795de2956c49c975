// Command simulate runs one simulation scenario end to end without the HTTP
// server: it generates the walk, degrades and regularizes it, fills the gaps,
// fits behavioural states, prints a diagnostic report, and writes the chart
// set. With -db it also stores the run for the server to serve later.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	_ "modernc.org/sqlite"

	"github.com/mjones029/tracksim/internal/config"
	"github.com/mjones029/tracksim/internal/fsutil"
	"github.com/mjones029/tracksim/internal/pipeline"
	"github.com/mjones029/tracksim/internal/report"
	"github.com/mjones029/tracksim/internal/track"
	"github.com/mjones029/tracksim/internal/trackdb"
	"github.com/mjones029/tracksim/internal/units"
)

var (
	scenarioFile  = flag.String("scenario", "", "Path to a scenario JSON file (empty runs the reference scenario)")
	seedOverride  = flag.Int64("seed", -1, "Override the scenario seed (negative keeps the scenario value)")
	outDir        = flag.String("out", "out", "Directory for chart output")
	dbFile        = flag.String("db", "", "Optional sqlite database to store the run in")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	noCharts      = flag.Bool("no-charts", false, "Skip chart output")
)

func main() {
	flag.Parse()

	scenario := config.DefaultScenario()
	var rawScenario []byte
	if *scenarioFile != "" {
		var err error
		scenario, err = config.LoadScenario(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		rawScenario, err = os.ReadFile(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to read scenario: %v", err)
		}
	} else {
		rawScenario = []byte("{}")
	}
	if *seedOverride >= 0 {
		seed := uint64(*seedOverride)
		scenario.Seed = &seed
	}

	cfg, err := scenario.PipelineConfig()
	if err != nil {
		log.Fatalf("Failed to resolve scenario: %v", err)
	}

	run, err := pipeline.Execute(cfg)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	printReport(run)

	if *dbFile != "" {
		db, err := trackdb.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		if err := db.SaveRun(run, rawScenario); err != nil {
			log.Fatalf("Failed to store run: %v", err)
		}
		fmt.Printf("\nStored run %s in %s\n", run.ID, *dbFile)
	}

	if !*noCharts {
		var attractors []track.Point
		for _, ph := range cfg.Phases {
			if ph.Params.Bias != 0 {
				attractors = append(attractors, ph.Params.Attractor)
			}
		}
		trajs := []report.NamedTrajectory{
			{Name: "simulated", Trajectory: run.Composition.Trajectory},
			{Name: "kept", Trajectory: run.Kept},
			{Name: "interpolated", Trajectory: run.Interpolated},
		}
		label := fmt.Sprintf("run %s (seed %d)", run.ID, run.Seed)
		if err := report.WriteCharts(fsutil.OSFileSystem{}, *outDir, label, trajs, run.Regularized.Intervals, attractors); err != nil {
			log.Fatalf("Failed to write charts: %v", err)
		}
		fmt.Printf("\nWrote charts to %s\n", *outDir)
	}
}

func printReport(run *pipeline.Run) {
	fmt.Printf("run %s  seed %d\n\n", run.ID, run.Seed)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "simulated fixes\t%d\n", run.Composition.Trajectory.Len())
	fmt.Fprintf(w, "kept / dropped\t%d / %d\n", run.Kept.Len(), run.Dropped.Len())
	fmt.Fprintf(w, "interpolated fixes\t%d\n", run.Interpolated.Len())
	fmt.Fprintf(w, "path length\t%.1f m\n", run.Summary.PathLength)
	fmt.Fprintf(w, "net displacement\t%.1f m\n", run.Summary.NetDistance)
	fmt.Fprintf(w, "mean step\t%.2f m (sd %.2f)\n", run.Summary.MeanStep, run.Summary.StepStdDev)
	fmt.Fprintf(w, "duration\t%s\n", run.Summary.Duration)
	w.Flush()

	fmt.Printf("\nfix intervals after regularization:\n")
	for _, bin := range run.Regularized.Intervals {
		fmt.Printf("  %-8s %d\n", bin.Interval, bin.Count)
	}

	if n := len(run.Regularized.Flags); n > 0 {
		fmt.Printf("\n%d fixes drifted beyond tolerance (max drift %s):\n", n, run.Regularized.MaxDrift)
		for _, f := range run.Regularized.Flags {
			fmt.Printf("  fix %-4d observed %s rounded to %s (drift %s)\n",
				f.Index, f.Observed.Format("15:04:05"), f.Rounded.Format("15:04:05"), f.Drift)
		}
	} else {
		fmt.Printf("\nno fixes drifted beyond tolerance (max drift %s)\n", run.Regularized.MaxDrift)
	}

	if run.States != nil {
		fmt.Printf("\nbehavioural states (%d iterations, logLik %.2f, AIC %.2f):\n",
			run.States.Iterations, run.States.LogLikelihood, run.States.AIC)
		sw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(sw, "state\tstep mean\tstep sd\tturn mean (deg)\tturn conc\tfixes\n")
		counts := make([]int, len(run.States.States))
		for _, l := range run.States.Labels {
			counts[l]++
		}
		for i, st := range run.States.States {
			fmt.Fprintf(sw, "%d\t%.2f\t%.2f\t%.1f\t%.2f\t%d\n",
				i+1, st.StepMean, st.StepSD, units.Degrees(st.TurnMean), st.TurnConcentration, counts[i])
		}
		sw.Flush()
	}
}

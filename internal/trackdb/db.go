// Package trackdb persists simulation runs to sqlite: the run record, every
// pipeline stage's fixes, drift flags, the fix-interval histogram, and
// decoded state labels.
package trackdb

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/mjones029/tracksim/internal/monitoring"
	"github.com/mjones029/tracksim/internal/pipeline"
	"github.com/mjones029/tracksim/internal/schedule"
	"github.com/mjones029/tracksim/internal/track"
)

// Stage names a pipeline output stored in the fixes table.
type Stage string

const (
	StageRaw          Stage = "raw"
	StageKept         Stage = "kept"
	StageDropped      Stage = "dropped"
	StageRegular      Stage = "regular"
	StageInterpolated Stage = "interpolated"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the sqlite database at path. Schema setup
// is handled by migrations; see MigrateUp.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	// under concurrent API reads.
	db.SetMaxOpenConns(1)
	return &DB{DB: db, path: path}, nil
}

// SaveRun stores a completed pipeline run and its resolved configuration.
func (db *DB) SaveRun(run *pipeline.Run, configJSON []byte) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var logLik, aic sql.NullFloat64
	if run.States != nil {
		logLik = sql.NullFloat64{Float64: run.States.LogLikelihood, Valid: true}
		aic = sql.NullFloat64{Float64: run.States.AIC, Valid: true}
	}
	_, err = tx.Exec(`INSERT INTO runs (
			run_id, created_at, seed, config_json, fix_count, drift_count,
			path_length, log_likelihood, aic
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), int64(run.Seed), string(configJSON),
		run.Interpolated.Len(), len(run.Regularized.Flags),
		run.Summary.PathLength, logLik, aic,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stages := []struct {
		stage Stage
		traj  track.Trajectory
	}{
		{StageRaw, run.Composition.Trajectory},
		{StageKept, run.Kept},
		{StageDropped, run.Dropped},
		{StageRegular, run.Regularized.Trajectory},
		{StageInterpolated, run.Interpolated},
	}
	insertFix, err := tx.Prepare(`INSERT INTO fixes (run_id, stage, idx, x, y, timestamp, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertFix.Close()

	for _, s := range stages {
		for i, f := range s.traj.Fixes {
			var state sql.NullInt64
			// State labels attach to the interpolated stage; the label for
			// the step into fix i sits at Labels[i-1].
			if s.stage == StageInterpolated && run.States != nil && i > 0 && i-1 < len(run.States.Labels) {
				state = sql.NullInt64{Int64: int64(run.States.Labels[i-1]), Valid: true}
			}
			if _, err := insertFix.Exec(run.ID, string(s.stage), i, f.X, f.Y,
				f.Timestamp.Format(time.RFC3339Nano), state); err != nil {
				return fmt.Errorf("insert fix %s/%d: %w", s.stage, i, err)
			}
		}
	}

	for _, fl := range run.Regularized.Flags {
		if _, err := tx.Exec(`INSERT INTO drift_flags (run_id, idx, observed, rounded, drift_ms)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, fl.Index, fl.Observed.Format(time.RFC3339Nano),
			fl.Rounded.Format(time.RFC3339Nano), fl.Drift.Milliseconds()); err != nil {
			return fmt.Errorf("insert drift flag: %w", err)
		}
	}

	for _, bin := range run.Regularized.Intervals {
		if _, err := tx.Exec(`INSERT INTO intervals (run_id, interval_ms, count) VALUES (?, ?, ?)`,
			run.ID, bin.Interval.Milliseconds(), bin.Count); err != nil {
			return fmt.Errorf("insert interval bin: %w", err)
		}
	}

	return tx.Commit()
}

// RunInfo is one row of the runs listing.
type RunInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Seed          uint64    `json:"seed"`
	FixCount      int       `json:"fix_count"`
	DriftCount    int       `json:"drift_count"`
	PathLength    float64   `json:"path_length_m"`
	LogLikelihood *float64  `json:"log_likelihood,omitempty"`
	AIC           *float64  `json:"aic,omitempty"`
}

// Runs lists stored runs, newest first.
func (db *DB) Runs() ([]RunInfo, error) {
	rows, err := db.Query(`SELECT run_id, created_at, seed, fix_count, drift_count,
			path_length, log_likelihood, aic
		FROM runs ORDER BY created_at DESC LIMIT 500`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var created string
		var seed int64
		var logLik, aic sql.NullFloat64
		if err := rows.Scan(&r.ID, &created, &seed, &r.FixCount, &r.DriftCount,
			&r.PathLength, &logLik, &aic); err != nil {
			return nil, err
		}
		r.Seed = uint64(seed)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at for run %s: %w", r.ID, err)
		}
		if logLik.Valid {
			v := logLik.Float64
			r.LogLikelihood = &v
		}
		if aic.Valid {
			v := aic.Float64
			r.AIC = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FixRow is one stored fix, with its decoded state label when present.
type FixRow struct {
	Index     int       `json:"index"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
	State     *int      `json:"state,omitempty"`
}

// Fixes returns one stage of a run's fixes in sequence order.
func (db *DB) Fixes(runID string, stage Stage) ([]FixRow, error) {
	rows, err := db.Query(`SELECT idx, x, y, timestamp, state FROM fixes
		WHERE run_id = ? AND stage = ? ORDER BY idx`, runID, string(stage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FixRow
	for rows.Next() {
		var f FixRow
		var ts string
		var state sql.NullInt64
		if err := rows.Scan(&f.Index, &f.X, &f.Y, &ts, &state); err != nil {
			return nil, err
		}
		if f.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp for fix %d: %w", f.Index, err)
		}
		if state.Valid {
			v := int(state.Int64)
			f.State = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Trajectory loads a stage back as a track.Trajectory.
func (db *DB) Trajectory(runID string, stage Stage) (track.Trajectory, error) {
	fixes, err := db.Fixes(runID, stage)
	if err != nil {
		return track.Trajectory{}, err
	}
	t := track.Trajectory{ID: runID}
	for _, f := range fixes {
		t.Fixes = append(t.Fixes, track.Fix{X: f.X, Y: f.Y, Timestamp: f.Timestamp})
	}
	return t, nil
}

// DriftFlags returns a run's recorded drift flags in index order.
func (db *DB) DriftFlags(runID string) ([]schedule.DriftFlag, error) {
	rows, err := db.Query(`SELECT idx, observed, rounded, drift_ms FROM drift_flags
		WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.DriftFlag
	for rows.Next() {
		var f schedule.DriftFlag
		var observed, rounded string
		var driftMs int64
		if err := rows.Scan(&f.Index, &observed, &rounded, &driftMs); err != nil {
			return nil, err
		}
		if f.Observed, err = time.Parse(time.RFC3339Nano, observed); err != nil {
			return nil, err
		}
		if f.Rounded, err = time.Parse(time.RFC3339Nano, rounded); err != nil {
			return nil, err
		}
		f.Drift = time.Duration(driftMs) * time.Millisecond
		out = append(out, f)
	}
	return out, rows.Err()
}

// Intervals returns a run's fix-interval frequency table.
func (db *DB) Intervals(runID string) ([]track.IntervalBin, error) {
	rows, err := db.Query(`SELECT interval_ms, count FROM intervals
		WHERE run_id = ? ORDER BY interval_ms`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []track.IntervalBin
	for rows.Next() {
		var ms int64
		var count int
		if err := rows.Scan(&ms, &count); err != nil {
			return nil, err
		}
		out = append(out, track.IntervalBin{Interval: time.Duration(ms) * time.Millisecond, Count: count})
	}
	return out, rows.Err()
}

// RunConfig returns the stored configuration JSON for a run.
func (db *DB) RunConfig(runID string) (json.RawMessage, error) {
	var cfg string
	err := db.QueryRow(`SELECT config_json FROM runs WHERE run_id = ?`, runID).Scan(&cfg)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(cfg), nil
}

// AttachAdminRoutes mounts live SQL debugging and a backup endpoint on mux.
// These are debug-only surfaces, reachable only in dev mode or over the
// tailnet.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Track DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("failed to remove backup file: %v", err)
			}
		}()

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
	return nil
}

package matchdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtside-data/rally.report/internal/track"
)

// RunRecord is one persisted analysis run.
type RunRecord struct {
	RunID      string
	Source     string
	FrameRate  float64
	StartFrame int
	EndFrame   int
	PlayMode   string
	CreatedAt  time.Time
}

// ObservationRecord is one entity's persisted state at one frame. Court
// and kinematic columns are NULL when the frame carried no kinematic
// sample, so reads preserve the distinction between zero and absent.
type ObservationRecord struct {
	RunID        string
	Entity       string
	Frame        int
	PixelX       float64
	PixelY       float64
	CourtX       sql.NullFloat64
	CourtY       sql.NullFloat64
	SpeedMps     sql.NullFloat64
	CumDistanceM sql.NullFloat64
	Interpolated bool
}

// BounceRecord is one persisted line-call event.
type BounceRecord struct {
	RunID   string
	Frame   int
	CourtX  float64
	CourtY  float64
	Verdict string
	MarginM float64
}

// RunStore persists and reads back analysis results.
type RunStore struct {
	db *DB
}

// NewRunStore returns a store backed by the given database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// SaveResult writes a complete run inside one transaction and returns the
// generated run ID. A partial write never survives: any failure rolls the
// whole run back.
func (s *RunStore) SaveResult(source string, res *track.Result) (string, error) {
	runID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO analysis_runs (run_id, source, frame_rate, start_frame, end_frame, play_mode)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, source, res.Config.FrameRate, res.Start, res.End, string(res.Config.Mode),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if res.Report != nil {
		if err := insertObservations(tx, runID, res.Report); err != nil {
			return "", err
		}
		if err := insertShots(tx, runID, res.Report.Shots); err != nil {
			return "", err
		}
	}
	if err := insertBounces(tx, runID, res.Bounces); err != nil {
		return "", err
	}
	if err := insertCoverage(tx, runID, res.Coverage); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func insertObservations(tx *sql.Tx, runID string, report *track.RallyReport) error {
	stmt, err := tx.Prepare(
		`INSERT INTO track_observations
		 (run_id, entity, frame, pixel_x, pixel_y, court_x, court_y, speed_mps, cum_distance_m, interpolated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, fs := range report.Frames {
		for id, efs := range fs.Entities {
			courtX := sql.NullFloat64{Float64: efs.Court.X, Valid: true}
			courtY := sql.NullFloat64{Float64: efs.Court.Y, Valid: true}
			speed := sql.NullFloat64{Float64: efs.SpeedMps, Valid: efs.HasKinematic}
			dist := sql.NullFloat64{Float64: efs.CumDistanceM, Valid: efs.HasKinematic}
			_, err := stmt.Exec(
				runID, string(id), fs.Frame,
				efs.Pixel.X, efs.Pixel.Y,
				courtX, courtY, speed, dist,
				efs.Interpolated,
			)
			if err != nil {
				return fmt.Errorf("insert observation: %w", err)
			}
		}
	}
	return nil
}

func insertBounces(tx *sql.Tx, runID string, bounces []track.BounceEvent) error {
	for _, b := range bounces {
		_, err := tx.Exec(
			`INSERT INTO bounce_events (run_id, frame, court_x, court_y, verdict, margin_m)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, b.Frame, b.Position.X, b.Position.Y, string(b.Verdict), b.MarginM,
		)
		if err != nil {
			return fmt.Errorf("insert bounce: %w", err)
		}
	}
	return nil
}

func insertShots(tx *sql.Tx, runID string, shots []track.ShotStat) error {
	for _, sh := range shots {
		opponent := sql.NullString{String: string(sh.Opponent), Valid: sh.Opponent != ""}
		oppSpeed := sql.NullFloat64{Float64: sh.OpponentSpeedMps, Valid: sh.Opponent != ""}
		_, err := tx.Exec(
			`INSERT INTO shots (run_id, start_frame, end_frame, player, opponent, ball_speed_mps, ball_peak_mps, opponent_speed_mps)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, sh.StartFrame, sh.EndFrame, string(sh.Player), opponent,
			sh.BallSpeedMps, sh.BallPeakSpeedMps, oppSpeed,
		)
		if err != nil {
			return fmt.Errorf("insert shot: %w", err)
		}
	}
	return nil
}

func insertCoverage(tx *sql.Tx, runID string, coverage map[track.EntityID]track.CoverageReport) error {
	for id, cov := range coverage {
		_, err := tx.Exec(
			`INSERT INTO coverage_reports (run_id, entity, start_frame, end_frame, area_m2, distance_m, sample_tally)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, string(id), cov.Window.Start, cov.Window.End,
			cov.AreaM2, cov.DistanceM, cov.SampleTally,
		)
		if err != nil {
			return fmt.Errorf("insert coverage: %w", err)
		}
	}
	return nil
}

// GetRun returns the run row for the given ID.
func (s *RunStore) GetRun(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, source, frame_rate, start_frame, end_frame, play_mode, created_at
		 FROM analysis_runs WHERE run_id = ?`, runID,
	)
	var r RunRecord
	err := row.Scan(&r.RunID, &r.Source, &r.FrameRate, &r.StartFrame, &r.EndFrame, &r.PlayMode, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, source, frame_rate, start_frame, end_frame, play_mode, created_at
		 FROM analysis_runs ORDER BY created_at DESC, run_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Source, &r.FrameRate, &r.StartFrame, &r.EndFrame, &r.PlayMode, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListBounces returns a run's bounce events in frame order.
func (s *RunStore) ListBounces(runID string) ([]BounceRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, frame, court_x, court_y, verdict, margin_m
		 FROM bounce_events WHERE run_id = ? ORDER BY frame`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bounces: %w", err)
	}
	defer rows.Close()

	var out []BounceRecord
	for rows.Next() {
		var b BounceRecord
		if err := rows.Scan(&b.RunID, &b.Frame, &b.CourtX, &b.CourtY, &b.Verdict, &b.MarginM); err != nil {
			return nil, fmt.Errorf("scan bounce: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ObservationsInRange returns a run's observations for frames in
// [startFrame, endFrame], ordered by frame then entity.
func (s *RunStore) ObservationsInRange(runID string, startFrame, endFrame int) ([]ObservationRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, entity, frame, pixel_x, pixel_y, court_x, court_y, speed_mps, cum_distance_m, interpolated
		 FROM track_observations
		 WHERE run_id = ? AND frame BETWEEN ? AND ?
		 ORDER BY frame, entity`, runID, startFrame, endFrame,
	)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var out []ObservationRecord
	for rows.Next() {
		var o ObservationRecord
		err := rows.Scan(
			&o.RunID, &o.Entity, &o.Frame,
			&o.PixelX, &o.PixelY,
			&o.CourtX, &o.CourtY, &o.SpeedMps, &o.CumDistanceM,
			&o.Interpolated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, via foreign keys, all its dependent rows.
func (s *RunStore) DeleteRun(runID string) error {
	res, err := s.db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

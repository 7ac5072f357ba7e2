package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/plenoptics/internal/report"
)

// ErrNotFound is returned when a run or report does not exist.
var ErrNotFound = errors.New("not found")

// Run is one invocation of the analysis over a work directory.
type Run struct {
	RunID      string
	WorkDir    string
	NumJobs    int
	NumFailed  int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// InsertRun records the start of a run.
func (db *DB) InsertRun(r Run) error {
	_, err := db.Exec(
		`INSERT INTO runs (run_id, work_dir, num_jobs, num_failed, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.WorkDir, r.NumJobs, r.NumFailed, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}
	return nil
}

// FinishRun stores the final job counts of a run.
func (db *DB) FinishRun(runID string, numJobs, numFailed int, finishedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE runs SET num_jobs = ?, num_failed = ?, finished_at = ? WHERE run_id = ?`,
		numJobs, numFailed, finishedAt.UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := db.QueryRow(
		`SELECT run_id, work_dir, num_jobs, num_failed, started_at, finished_at FROM runs WHERE run_id = ?`,
		runID,
	).Scan(&r.RunID, &r.WorkDir, &r.NumJobs, &r.NumFailed, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}

// PointSourceRow is a catalogued point-source report with the headline
// numbers pulled out for querying. Float columns are NaN when the report
// held no finite value.
type PointSourceRow struct {
	ReportID     string
	RunID        string
	Instrument   string
	Observation  string
	SampleKey    string
	Angle80Rad   float64
	ValidBeams   int
	TotalBeams   int
	ValidPhotons float64
	TotalPhotons int
	TimeFWHMS    float64
	CreatedAt    time.Time
	Report       *report.PointSourceReport
}

// NewPointSourceRow fills a row from r with a fresh report id.
func NewPointSourceRow(runID, instrument, observation, sampleKey string, r *report.PointSourceReport, createdAt time.Time) PointSourceRow {
	return PointSourceRow{
		ReportID:     uuid.NewString(),
		RunID:        runID,
		Instrument:   instrument,
		Observation:  observation,
		SampleKey:    sampleKey,
		Angle80Rad:   r.Image.Angle80.Float(),
		ValidBeams:   r.Statistics.ImageBeams.Valid,
		TotalBeams:   r.Statistics.ImageBeams.Total,
		ValidPhotons: r.Statistics.Photons.Valid.Float(),
		TotalPhotons: r.Statistics.Photons.Total,
		TimeFWHMS:    r.Time.FWHM.Width(),
		CreatedAt:    createdAt,
		Report:       r,
	}
}

// InsertPointSourceReport stores row. A second report for the same run,
// instrument, observation and sample is rejected.
func (db *DB) InsertPointSourceReport(row PointSourceRow) error {
	body, err := json.Marshal(row.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO point_source_reports (
			report_id, run_id, instrument, observation, sample_key,
			angle80_rad, valid_beams, total_beams, valid_photons, total_photons,
			time_fwhm_s, created_at, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ReportID, row.RunID, row.Instrument, row.Observation, row.SampleKey,
		nullFloat(row.Angle80Rad), row.ValidBeams, row.TotalBeams, nullFloat(row.ValidPhotons), row.TotalPhotons,
		nullFloat(row.TimeFWHMS), row.CreatedAt.UnixNano(), string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s/%s/%s: %w", row.Instrument, row.Observation, row.SampleKey, err)
	}
	return nil
}

const selectPointSourceRow = `SELECT report_id, run_id, instrument, observation, sample_key,
	angle80_rad, valid_beams, total_beams, valid_photons, total_photons,
	time_fwhm_s, created_at, report_json FROM point_source_reports`

// ListPointSourceReports returns the reports of a run ordered by
// instrument, observation and sample.
func (db *DB) ListPointSourceReports(runID string) ([]PointSourceRow, error) {
	rows, err := db.Query(selectPointSourceRow+` WHERE run_id = ? ORDER BY instrument, observation, sample_key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PointSourceRow
	for rows.Next() {
		row, err := scanPointSourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// GetPointSourceReport loads one report by id.
func (db *DB) GetPointSourceReport(reportID string) (*PointSourceRow, error) {
	row, err := scanPointSourceRow(db.QueryRow(selectPointSourceRow+` WHERE report_id = ?`, reportID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return row, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPointSourceRow(s scanner) (*PointSourceRow, error) {
	var row PointSourceRow
	var angle80, validPhotons, fwhm sql.NullFloat64
	var created int64
	var body string
	if err := s.Scan(
		&row.ReportID, &row.RunID, &row.Instrument, &row.Observation, &row.SampleKey,
		&angle80, &row.ValidBeams, &row.TotalBeams, &validPhotons, &row.TotalPhotons,
		&fwhm, &created, &body,
	); err != nil {
		return nil, err
	}
	row.Angle80Rad = floatOrNaN(angle80)
	row.ValidPhotons = floatOrNaN(validPhotons)
	row.TimeFWHMS = floatOrNaN(fwhm)
	row.CreatedAt = time.Unix(0, created).UTC()
	row.Report = &report.PointSourceReport{}
	if err := json.Unmarshal([]byte(body), row.Report); err != nil {
		return nil, fmt.Errorf("report %s: failed to decode stored JSON: %w", row.ReportID, err)
	}
	return &row, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

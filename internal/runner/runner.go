// Package runner analyses every simulated response in a work directory and
// collects the results into one archive per instrument and observation.
//
// Work directory layout:
//
//	config/analysis.json
//	instruments/<instrument>/light_field_geometry/
//	responses/<instrument>/<observation>/<NNNNNN>.json     source config
//	responses/<instrument>/<observation>/<NNNNNN>.phs.gz   raw sensor response
//	analysis/<instrument>/<observation>.zip                output
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/plenoptics/internal/config"
	"github.com/banshee-data/plenoptics/internal/db"
	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/lightfield"
	"github.com/banshee-data/plenoptics/internal/monitoring"
	"github.com/banshee-data/plenoptics/internal/security"
	"github.com/banshee-data/plenoptics/internal/sources"
	"github.com/banshee-data/plenoptics/internal/timeutil"
)

// Directory and file names of the work directory.
const (
	ResponsesDir   = "responses"
	InstrumentsDir = "instruments"
	AnalysisDir    = "analysis"
	GeometryDir    = "light_field_geometry"
	RefocusDir     = "refocus"

	SourceExt   = ".json"
	ResponseExt = ".phs.gz"

	DepthArchiveName = "point_depth.zip"
	DepthSummaryName = "point_depth_summary.json"
)

// ErrJobsFailed is returned by Run when at least one sample could not be
// analysed. The archives still hold every sample that succeeded.
var ErrJobsFailed = errors.New("jobs failed")

// Options configure a Runner. Only WorkDir is required.
type Options struct {
	WorkDir string

	// Workers bounds the number of samples analysed at once. Zero or
	// less means one.
	Workers int

	// Instruments restricts the run to these instrument keys.
	Instruments []string

	// Refocus images phantom responses over the depth scan and keeps the
	// images under analysis/<instrument>/refocus/<NNNNNN>/.
	Refocus bool

	// Config overrides the work directory's config/analysis.json.
	Config *config.AnalysisConfig

	// Catalog, when set, receives one row per point-source report.
	Catalog *db.DB

	Metrics *Collector
	Clock   timeutil.Clock

	// ProgressInterval between progress log lines. Zero disables them.
	ProgressInterval time.Duration
}

// Job is one sample to analyse. Number is the sample number within its
// observation and seeds the random generator, so a sample's result does
// not depend on which other samples share the run.
type Job struct {
	Number      int
	Instrument  string
	Observation sources.Observation
	SampleKey   string
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	NumJobs   int
	NumFailed int
	Archives  []string
	Duration  time.Duration
}

// Runner analyses one work directory.
type Runner struct {
	fsys       fsutil.FileSystem
	opts       Options
	clock      timeutil.Clock
	cfg        *config.AnalysisConfig
	geometries map[string]*lightfield.Geometry
}

// New reads the analysis config and light-field geometries of the work
// directory.
func New(fsys fsutil.FileSystem, opts Options) (*Runner, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	for _, key := range opts.Instruments {
		if err := security.ValidateKey(key); err != nil {
			return nil, fmt.Errorf("instrument: %w", err)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	r := &Runner{fsys: fsys, opts: opts, clock: opts.Clock}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}

	r.cfg = opts.Config
	if r.cfg == nil {
		cfg, err := r.loadConfig()
		if err != nil {
			return nil, err
		}
		r.cfg = cfg
	} else if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	instruments, err := r.instruments()
	if err != nil {
		return nil, err
	}
	r.geometries = make(map[string]*lightfield.Geometry, len(instruments))
	for _, instrument := range instruments {
		dir := r.path(InstrumentsDir, instrument, GeometryDir)
		g, err := lightfield.LoadGeometry(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", instrument, err)
		}
		r.geometries[instrument] = g
	}
	return r, nil
}

// Config returns the analysis config in effect.
func (r *Runner) Config() *config.AnalysisConfig { return r.cfg }

func (r *Runner) path(elem ...string) string {
	return filepath.Join(append([]string{r.opts.WorkDir}, elem...)...)
}

func (r *Runner) loadConfig() (*config.AnalysisConfig, error) {
	path := r.path(config.WorkDirConfigPath)
	if !r.fsys.Exists(path) {
		monitoring.Logf("no %s, using default analysis config", path)
		return config.DefaultAnalysisConfig(), nil
	}
	data, err := r.fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis config: %w", err)
	}
	cfg, err := config.ParseAnalysisConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// instruments lists the instrument keys that have responses.
func (r *Runner) instruments() ([]string, error) {
	if len(r.opts.Instruments) > 0 {
		return r.opts.Instruments, nil
	}
	names, err := r.fsys.ReadDir(r.path(ResponsesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	for _, name := range names {
		if err := security.ValidateKey(name); err != nil {
			return nil, fmt.Errorf("instrument: %w", err)
		}
	}
	return names, nil
}

// Jobs lists every sample of the work directory, sorted by instrument,
// observation and sample key.
func (r *Runner) Jobs() ([]Job, error) {
	instruments, err := r.instruments()
	if err != nil {
		return nil, err
	}
	var jobs []Job
	for _, instrument := range instruments {
		obsKeys, err := r.fsys.ReadDir(r.path(ResponsesDir, instrument))
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", instrument, err)
		}
		for _, key := range obsKeys {
			obs, err := sources.ParseObservation(key)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", instrument, err)
			}
			names, err := r.fsys.ReadDir(r.path(ResponsesDir, instrument, key))
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				stem, ok := strings.CutSuffix(name, SourceExt)
				if !ok {
					continue
				}
				n, err := sources.ParseSampleKey(stem)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: %w", instrument, key, err)
				}
				jobs = append(jobs, Job{
					Number:      n,
					Instrument:  instrument,
					Observation: obs,
					SampleKey:   stem,
				})
			}
		}
	}
	return jobs, nil
}

// Run analyses every job in parallel and then writes the archives, the
// depth summaries and the catalog rows in job order. Samples that fail are
// logged and left out; Run then returns ErrJobsFailed along with the
// summary. Cancelling ctx stops jobs that have not started yet.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	jobs, err := r.Jobs()
	if err != nil {
		return nil, err
	}
	start := r.clock.Now()
	sum := &Summary{RunID: uuid.NewString(), NumJobs: len(jobs)}
	log := monitoring.Logger().With("run_id", sum.RunID)
	log.Info("analysis started", "work_dir", r.opts.WorkDir, "jobs", len(jobs), "workers", r.opts.Workers)

	if r.opts.Catalog != nil {
		if err := r.opts.Catalog.InsertRun(db.Run{
			RunID: sum.RunID, WorkDir: r.opts.WorkDir, NumJobs: len(jobs), StartedAt: start,
		}); err != nil {
			return nil, err
		}
	}

	var done atomic.Int64
	stopProgress := r.reportProgress(&done, len(jobs))
	results, err := r.mapJobs(ctx, jobs, &done)
	stopProgress()
	if err != nil {
		return nil, err
	}

	var firstErr error
	for i, res := range results {
		if res.err != nil {
			sum.NumFailed++
			log.Error("job failed", "instrument", jobs[i].Instrument,
				"observation", string(jobs[i].Observation), "sample", jobs[i].SampleKey, "error", res.err)
			if firstErr == nil {
				firstErr = res.err
			}
		}
	}

	archives, err := r.reduce(sum.RunID, jobs, results)
	if err != nil {
		return nil, err
	}
	sum.Archives = archives
	sum.Duration = r.clock.Since(start)

	if r.opts.Catalog != nil {
		if err := r.opts.Catalog.FinishRun(sum.RunID, sum.NumJobs, sum.NumFailed, r.clock.Now()); err != nil {
			return nil, err
		}
	}
	log.Info("analysis finished", "jobs", sum.NumJobs, "failed", sum.NumFailed,
		"archives", len(sum.Archives), "duration", sum.Duration)

	if sum.NumFailed > 0 {
		return sum, fmt.Errorf("%w: %d of %d, first: %w", ErrJobsFailed, sum.NumFailed, sum.NumJobs, firstErr)
	}
	return sum, nil
}

// mapJobs runs every job on a bounded pool. Job errors are kept in the
// results; only cancellation aborts the pool.
func (r *Runner) mapJobs(ctx context.Context, jobs []Job, done *atomic.Int64) ([]jobResult, error) {
	results := make([]jobResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t0 := r.clock.Now()
			results[i] = r.runJob(jobs[i])
			r.opts.Metrics.ObserveJob(string(jobs[i].Observation), r.clock.Since(t0), results[i].err)
			done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}
	return results, nil
}

func (r *Runner) reportProgress(done *atomic.Int64, total int) (stop func()) {
	if r.opts.ProgressInterval <= 0 || total == 0 {
		return func() {}
	}
	ticker := r.clock.NewTicker(r.opts.ProgressInterval)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C():
				monitoring.Logf("analysed %d/%d samples", done.Load(), total)
			case <-quit:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(quit)
		wg.Wait()
	}
}

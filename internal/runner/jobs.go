package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/plenoptics/internal/archive"
	"github.com/banshee-data/plenoptics/internal/db"
	"github.com/banshee-data/plenoptics/internal/depth"
	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/imaging"
	"github.com/banshee-data/plenoptics/internal/lightfield"
	"github.com/banshee-data/plenoptics/internal/monitoring"
	"github.com/banshee-data/plenoptics/internal/report"
	"github.com/banshee-data/plenoptics/internal/sources"
)

// ErrSourceMismatch is returned for a source config filed under an
// observation of another kind.
var ErrSourceMismatch = errors.New("source does not match observation")

// emptyResult is the archived result of a phantom sample.
var emptyResult = json.RawMessage(`{}`)

type jobResult struct {
	entry    any
	report   *report.PointSourceReport
	estimate *depth.Estimate
	err      error
}

// NewPRNG returns the generator of sample number n.
func NewPRNG(n int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(n), 0))
}

func (r *Runner) runJob(job Job) jobResult {
	res, err := r.analyse(job)
	if err != nil {
		return jobResult{err: fmt.Errorf("%s/%s/%s: %w", job.Instrument, job.Observation, job.SampleKey, err)}
	}
	return res
}

func (r *Runner) analyse(job Job) (jobResult, error) {
	base := r.path(ResponsesDir, job.Instrument, string(job.Observation), job.SampleKey)
	data, err := r.fsys.ReadFile(base + SourceExt)
	if err != nil {
		return jobResult{}, fmt.Errorf("failed to read source config: %w", err)
	}
	src, err := sources.ParseSource(data)
	if err != nil {
		return jobResult{}, err
	}
	if !job.Observation.Accepts(src) {
		return jobResult{}, fmt.Errorf("%w: %s source under %s", ErrSourceMismatch, src.Type(), job.Observation)
	}
	raw, err := lightfield.ReadRawSensorResponse(r.fsys, base+ResponseExt)
	if err != nil {
		return jobResult{}, err
	}
	geom, ok := r.geometries[job.Instrument]
	if !ok {
		return jobResult{}, fmt.Errorf("no light-field geometry for %s", job.Instrument)
	}
	prng := NewPRNG(job.Number)

	switch s := src.(type) {
	case sources.Star:
		rep, err := r.pointSourceReport(raw, geom, s.CxDeg, s.CyDeg, r.cfg.GetObjectDistanceM(), prng)
		if err != nil {
			return jobResult{}, err
		}
		return jobResult{entry: rep, report: rep}, nil

	case sources.Point:
		rep, err := r.pointSourceReport(raw, geom, s.CxDeg, s.CyDeg, s.ObjectDistanceM, prng)
		if err != nil {
			return jobResult{}, err
		}
		scan, err := depth.ScanDepth(raw, geom, r.depths(), r.cfg.GetContainmentPercentile(), prng)
		if err != nil {
			return jobResult{}, err
		}
		est := &depth.Estimate{
			CxDeg:           s.CxDeg,
			CyDeg:           s.CyDeg,
			ObjectDistanceM: s.ObjectDistanceM,
			NumPhotons:      raw.NumberPhotons,
			Scan:            *scan,
		}
		return jobResult{entry: rep, report: rep, estimate: est}, nil

	case sources.Phantom:
		if r.opts.Refocus {
			if err := r.refocus(job, raw, geom, prng); err != nil {
				return jobResult{}, err
			}
		}
		return jobResult{entry: emptyResult}, nil

	default:
		return jobResult{}, fmt.Errorf("%w: %T", sources.ErrUnknownSourceType, src)
	}
}

func (r *Runner) pointSourceReport(
	raw *lightfield.RawSensorResponse,
	geom *lightfield.Geometry,
	cxDeg, cyDeg, objectDistanceM float64,
	prng *rand.Rand,
) (*report.PointSourceReport, error) {
	return report.MakePointSourceReport(report.Input{
		ImageCenterCxDeg:      cxDeg,
		ImageCenterCyDeg:      cyDeg,
		Response:              raw,
		Geometry:              geom,
		ObjectDistanceM:       objectDistanceM,
		ContainmentPercentile: r.cfg.GetContainmentPercentile(),
		Binning:               r.cfg.GetBinning(),
		ImageSubSamples:       r.cfg.GetNumSubSamplesImage(),
	}, prng)
}

func (r *Runner) depths() []float64 {
	ds := r.cfg.GetDepthScan()
	return depth.GeomSpace(ds.GetMinObjectDistanceM(), ds.GetMaxObjectDistanceM(), ds.GetNumSteps())
}

func (r *Runner) refocus(job Job, raw *lightfield.RawSensorResponse, geom *lightfield.Geometry, prng *rand.Rand) error {
	b := r.cfg.GetBinning()
	cache := imaging.NewImageCache(r.fsys,
		r.path(AnalysisDir, job.Instrument, RefocusDir, job.SampleKey), b.NumPixelCx, b.NumPixelCy)
	depthsM := r.depths()
	images, err := depth.Refocus(cache, geom, raw.Channels(), depthsM, b, r.cfg.GetNumSubSamplesImage(), prng)
	if err != nil {
		return err
	}
	if i := depth.Sharpest(images); i >= 0 {
		monitoring.Logf("%s/phantom/%s: sharpest at %.0f m", job.Instrument, job.SampleKey, depthsM[i])
	}
	return nil
}

type archiveKey struct {
	instrument  string
	observation sources.Observation
}

// reduce writes the archives and catalog rows in job order and returns the
// archive paths.
func (r *Runner) reduce(runID string, jobs []Job, results []jobResult) ([]string, error) {
	var order []archiveKey
	groups := make(map[archiveKey][]int)
	for i, job := range jobs {
		k := archiveKey{job.Instrument, job.Observation}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var written []string
	for _, k := range order {
		path := r.path(AnalysisDir, k.instrument, string(k.observation)+".zip")
		w := archive.NewWriter(r.fsys, path)
		var (
			estimates []depth.Estimate
			depthKeys []string
		)
		for _, i := range groups[k] {
			res := results[i]
			if res.err != nil {
				continue
			}
			if err := w.Add(jobs[i].SampleKey, res.entry); err != nil {
				return nil, err
			}
			if res.report != nil {
				r.opts.Metrics.ObserveValidPhotons(k.instrument, res.report.Statistics.Photons.Valid.Float())
				if err := r.catalog(runID, jobs[i], res.report); err != nil {
					return nil, err
				}
			}
			if res.estimate != nil {
				estimates = append(estimates, *res.estimate)
				depthKeys = append(depthKeys, jobs[i].SampleKey)
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		r.opts.Metrics.AddArchiveEntries(k.instrument, string(k.observation), w.Len())
		written = append(written, path)

		if k.observation == sources.ObservationPoint {
			paths, err := r.writeDepth(k.instrument, depthKeys, estimates)
			if err != nil {
				return nil, err
			}
			written = append(written, paths...)
		}
	}
	return written, nil
}

// writeDepth archives the depth scans of one instrument and writes their
// summary next to it.
func (r *Runner) writeDepth(instrument string, keys []string, estimates []depth.Estimate) ([]string, error) {
	path := r.path(AnalysisDir, instrument, DepthArchiveName)
	w := archive.NewWriter(r.fsys, path)
	for i, est := range estimates {
		if err := w.Add(keys[i], est); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	sum := depth.Summarize(estimates, r.cfg.GetContainmentPercentile())
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode depth summary: %w", err)
	}
	sumPath := r.path(AnalysisDir, instrument, DepthSummaryName)
	if err := fsutil.WriteFileAtomic(r.fsys, sumPath, data, 0o644); err != nil {
		return nil, err
	}
	return []string{path, sumPath}, nil
}

func (r *Runner) catalog(runID string, job Job, rep *report.PointSourceReport) error {
	if r.opts.Catalog == nil {
		return nil
	}
	row := db.NewPointSourceRow(runID, job.Instrument, string(job.Observation), job.SampleKey, rep, r.clock.Now())
	return r.opts.Catalog.InsertPointSourceReport(row)
}

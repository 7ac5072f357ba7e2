package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/plenoptics/internal/archive"
	"github.com/banshee-data/plenoptics/internal/depth"
	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/plot"
	"github.com/banshee-data/plenoptics/internal/report"
	"github.com/banshee-data/plenoptics/internal/runner"
	"github.com/banshee-data/plenoptics/internal/security"
	"github.com/banshee-data/plenoptics/internal/sources"
)

// VmaxTableName is the guide-star colour scale table written by plot.
const VmaxTableName = "guide_star_vmax.json"

func cmdPlot(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("plot", stderr)
	workDir := fs.String("work-dir", "", "Work directory (required)")
	outDir := fs.String("out", "", "Output directory (default: <work-dir>/plots)")
	instruments := fs.String("instruments", "", "Comma separated instrument keys (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workDir == "" {
		return fmt.Errorf("-work-dir is required")
	}
	if *outDir == "" {
		*outDir = filepath.Join(*workDir, "plots")
	}
	if err := security.ValidateOutputPath(*outDir, *workDir); err != nil {
		return err
	}

	written, err := renderPlots(fsutil.OSFileSystem{}, *workDir, *outDir, splitList(*instruments))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d files to %s\n", len(written), *outDir)
	return nil
}

// renderPlots draws every point-source report and depth summary found
// under the analysis directory. Guide stars of all instruments share one
// colour scale.
func renderPlots(fsys fsutil.FileSystem, workDir, outDir string, instruments []string) ([]string, error) {
	analysis := filepath.Join(workDir, runner.AnalysisDir)
	if len(instruments) == 0 {
		var err error
		if instruments, err = fsys.ReadDir(analysis); err != nil {
			return nil, fmt.Errorf("failed to list analysis results: %w", err)
		}
	}

	reports := map[sources.Observation]map[string]map[string]*report.PointSourceReport{
		sources.ObservationStar:  {},
		sources.ObservationPoint: {},
	}
	for _, instrument := range instruments {
		if err := security.ValidateKey(instrument); err != nil {
			return nil, err
		}
		for obs, byInstrument := range reports {
			path := filepath.Join(analysis, instrument, string(obs)+".zip")
			if !fsys.Exists(path) {
				continue
			}
			reps, err := archive.ReadPointSourceReports(fsys, path)
			if err != nil {
				return nil, err
			}
			byInstrument[instrument] = reps
		}
	}

	table, err := report.TableVmax(reports[sources.ObservationStar])
	if err != nil {
		return nil, err
	}
	vmax := report.TableVmaxMax(table)

	var written []string
	write := func(path string, data []byte) error {
		if err := fsutil.WriteFileAtomic(fsys, path, data, 0o644); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if len(table) > 0 {
		data, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := write(filepath.Join(outDir, VmaxTableName), data); err != nil {
			return nil, err
		}
	}

	for _, obs := range []sources.Observation{sources.ObservationStar, sources.ObservationPoint} {
		scale := 0.0
		if obs == sources.ObservationStar {
			scale = vmax
		}
		byInstrument := reports[obs]
		for _, instrument := range archive.Keys(byInstrument) {
			reps := byInstrument[instrument]
			for _, key := range archive.Keys(reps) {
				base := filepath.Join(outDir, instrument, string(obs), key)
				if err := plot.WriteImagePNG(fsys, base+".png", reps[key], scale); err != nil {
					return nil, fmt.Errorf("%s/%s/%s: %w", instrument, obs, key, err)
				}
				written = append(written, base+".png")

				var buf bytes.Buffer
				title := fmt.Sprintf("%s %s %s", instrument, obs, key)
				if err := plot.RenderTimeProfileHTML(&buf, reps[key], title); err != nil {
					return nil, fmt.Errorf("%s: %w", title, err)
				}
				if err := write(base+".html", buf.Bytes()); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, instrument := range instruments {
		paths, err := renderDepth(fsys, filepath.Join(analysis, instrument, runner.DepthSummaryName),
			filepath.Join(outDir, instrument), instrument)
		if err != nil {
			return nil, err
		}
		written = append(written, paths...)
	}
	return written, nil
}

func renderDepth(fsys fsutil.FileSystem, summaryPath, outDir, instrument string) ([]string, error) {
	if !fsys.Exists(summaryPath) {
		return nil, nil
	}
	data, err := fsys.ReadFile(summaryPath)
	if err != nil {
		return nil, err
	}
	var sum depth.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("%s: %w", summaryPath, err)
	}
	if len(sum.Pairs) == 0 {
		return nil, nil
	}

	png := filepath.Join(outDir, "depth.png")
	if err := plot.WriteDepthScanPNG(fsys, png, sum); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := plot.RenderDepthScanHTML(&buf, sum, "depth "+instrument); err != nil {
		return nil, err
	}
	html := filepath.Join(outDir, "depth.html")
	if err := fsutil.WriteFileAtomic(fsys, html, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	return []string{png, html}, nil
}

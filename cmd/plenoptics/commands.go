package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/plenoptics/internal/config"
	"github.com/banshee-data/plenoptics/internal/db"
	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/monitoring"
	"github.com/banshee-data/plenoptics/internal/runner"
	"github.com/banshee-data/plenoptics/internal/security"
	"github.com/banshee-data/plenoptics/internal/timeutil"
	"github.com/banshee-data/plenoptics/internal/units"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cmdInit(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("init", stderr)
	workDir := fs.String("work-dir", "", "Work directory (required)")
	force := fs.Bool("force", false, "Overwrite an existing analysis config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workDir == "" {
		return fmt.Errorf("-work-dir is required")
	}

	osfs := fsutil.OSFileSystem{}
	path := filepath.Join(*workDir, config.WorkDirConfigPath)
	if osfs.Exists(path) && !*force {
		return fmt.Errorf("%s exists, use -force to overwrite", path)
	}
	data, err := json.MarshalIndent(config.DefaultAnalysisConfig(), "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(osfs, path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	if err := osfs.MkdirAll(filepath.Join(*workDir, runner.ResponsesDir), 0o755); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func cmdAnalyse(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("analyse", stderr)
	workDir := fs.String("work-dir", "", "Work directory (required)")
	workers := fs.Int("workers", runtime.NumCPU(), "Samples analysed in parallel")
	instruments := fs.String("instruments", "", "Comma separated instrument keys (default: all)")
	refocus := fs.Bool("refocus", false, "Refocus phantom responses over the depth scan")
	configPath := fs.String("config", "", "Analysis config overriding <work-dir>/config/analysis.json")
	dbPath := fs.String("db", "", "Catalog database to record reports in (optional)")
	metricsOut := fs.String("metrics-out", "", "Write Prometheus metrics to this textfile when done")
	progress := fs.Duration("progress", 30*time.Second, "Interval of progress log lines, 0 to disable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workDir == "" {
		return fmt.Errorf("-work-dir is required")
	}

	opts := runner.Options{
		WorkDir:          *workDir,
		Workers:          *workers,
		Instruments:      splitList(*instruments),
		Refocus:          *refocus,
		Clock:            timeutil.RealClock{},
		ProgressInterval: *progress,
	}
	if *configPath != "" {
		cfg, err := config.LoadAnalysisConfig(*configPath)
		if err != nil {
			return err
		}
		opts.Config = cfg
	}
	if *dbPath != "" {
		catalog, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer catalog.Close()
		opts.Catalog = catalog
	}
	if *metricsOut != "" {
		if err := security.ValidateOutputPath(*metricsOut, *workDir); err != nil {
			return err
		}
		metrics, err := runner.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		opts.Metrics = metrics
	}

	r, err := runner.New(fsutil.OSFileSystem{}, opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, runErr := r.Run(ctx)
	if sum != nil {
		fmt.Fprintf(stdout, "run %s: %d jobs, %d failed, %s\n", sum.RunID, sum.NumJobs, sum.NumFailed, sum.Duration.Round(time.Millisecond))
		for _, path := range sum.Archives {
			fmt.Fprintf(stdout, "  %s\n", path)
		}
	}
	if opts.Metrics != nil {
		if err := opts.Metrics.WriteTextfile(*metricsOut); err != nil {
			monitoring.Logf("failed to write metrics: %v", err)
		}
	}
	return runErr
}

func cmdCatalog(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("catalog", stderr)
	dbPath := fs.String("db", "", "Catalog database (required)")
	runID := fs.String("run", "", "Run ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	if *runID == "" {
		return fmt.Errorf("-run is required")
	}

	catalog, err := db.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	run, err := catalog.GetRun(*runID)
	if err != nil {
		return err
	}
	rows, err := catalog.ListPointSourceReports(*runID)
	if err != nil {
		return err
	}

	status := "running"
	if run.FinishedAt != nil {
		status = "finished " + run.FinishedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(stdout, "run %s in %s: %d jobs, %d failed, %s\n", run.RunID, run.WorkDir, run.NumJobs, run.NumFailed, status)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tOBSERVATION\tSAMPLE\tANGLE80_DEG\tBEAMS\tPHOTONS\tFWHM_NS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%d/%d\t%.0f/%d\t%.2f\n",
			r.Instrument, r.Observation, r.SampleKey, units.Rad2Deg(r.Angle80Rad),
			r.ValidBeams, r.TotalBeams, r.ValidPhotons, r.TotalPhotons, r.TimeFWHMS*1e9)
	}
	return tw.Flush()
}

func cmdMigrate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	dbPath := fs.String("db", "", "Catalog database (required)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: plenoptics migrate -db <path> <action>")
		db.PrintMigrateHelp(stderr)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/plenoptics/internal/monitoring"
	"github.com/banshee-data/plenoptics/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	top := flag.NewFlagSet("plenoptics", flag.ContinueOnError)
	top.SetOutput(stderr)
	top.Usage = func() { printUsage(stderr) }
	showVersion := top.Bool("version", false, "Print version and exit")
	logLevel := top.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat := top.String("log-format", "text", "Log format: text or json")
	if err := top.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "plenoptics %s\n", version.String())
		return 0
	}
	monitoring.SetStructuredLogger(monitoring.NewLogger(stderr, *logLevel, *logFormat))

	if top.NArg() < 1 {
		printUsage(stderr)
		return 2
	}
	command, rest := top.Arg(0), top.Args()[1:]

	var err error
	switch command {
	case "init":
		err = cmdInit(rest, stdout, stderr)
	case "analyse", "analyze":
		err = cmdAnalyse(rest, stdout, stderr)
	case "plot":
		err = cmdPlot(rest, stdout, stderr)
	case "catalog":
		err = cmdCatalog(rest, stdout, stderr)
	case "migrate":
		err = cmdMigrate(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "plenoptics %s\n", version.String())
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "plenoptics %s: %v\n", command, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `plenoptics - analysis of simulated plenoptic telescope responses

Usage: plenoptics [-log-level L] [-log-format F] <command> [options]

Commands:
  init       Write the default analysis config into a work directory
  analyse    Analyse every response of a work directory
  plot       Render images, time profiles and depth plots of the results
  catalog    List the catalogued reports of a run
  migrate    Manage the catalog database schema
  version    Show version
  help       Show this help message

Run 'plenoptics <command> -h' for the options of a command.`)
}

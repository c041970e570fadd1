package main

import (
	"flag"
	"fmt"
	"os"
)

// traceFileList collects repeated -trace flags into a slice.
type traceFileList []string

func (t *traceFileList) String() string { return fmt.Sprint([]string(*t)) }

func (t *traceFileList) Set(value string) error {
	*t = append(*t, value)
	return nil
}

// CLIConfig holds the daemon's command-line overrides. Every field
// here overrides the equivalent config.Config field once loaded (§14
// step 1); the daemon has no other runtime surface (no dynamic
// reconfiguration, no interactive shell).
type CLIConfig struct {
	ConfigPath        string
	TraceFiles        []string
	LogLevel          string
	WorkerConcurrency int
	ShowVersion       bool
	ShowHelp          bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg := &CLIConfig{}
	var traces traceFileList

	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to YAML configuration file")
	fs.Var(&traces, "trace", "Trace file to ingest (repeatable)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Override log_level from the config file: debug, info, warn, error")
	fs.IntVar(&cfg.WorkerConcurrency, "worker-concurrency", 0, "Override worker_concurrency from the config file")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "%s ingests one or more Perfetto-format trace files.\n\nUsage: %s -trace <path> [-trace <path>...] [-config <path>]\n\n", appName, appName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.TraceFiles = traces
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}
	if len(cfg.TraceFiles) == 0 {
		return fmt.Errorf("at least one -trace path is required")
	}
	return nil
}

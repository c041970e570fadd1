// Package main implements traceprocd, a batch driver that ingests one
// or more Perfetto-format trace files through the C1-C7 core and
// reports aggregate diagnostics. It is not a service manager with
// dynamic reconfiguration; that belongs to the excluded interactive
// query shell.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/c360/traceproc/config"
	"github.com/c360/traceproc/errors"
	"github.com/c360/traceproc/metric"
	"github.com/c360/traceproc/pkg/worker"
	"github.com/c360/traceproc/stats"
)

const (
	Version = "0.1.0"
	appName = "traceprocd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	// §14 step 1: load config, then apply flag overrides.
	mgr, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := mgr.ApplyFlagOverrides(cliCfg.WorkerConcurrency, cliCfg.LogLevel); err != nil {
		return fmt.Errorf("apply flag overrides: %w", err)
	}
	cfg := mgr.GetConfig().Get()

	// §14 step 2: build the structured logger.
	logger, runID := setupLogger(cfg.LogLevel)
	logger.Info("starting traceprocd", "version", Version, "files", len(cliCfg.TraceFiles), "worker_concurrency", cfg.WorkerConcurrency)

	// §14 step 3: register Prometheus collectors, start /metrics.
	metrics := metric.NewRegistry()
	metricsServer := metric.NewServer(cfg.MetricsListenAddr, metrics)
	metricsErrCh := metricsServer.Start()
	go func() {
		if err := <-metricsErrCh; err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	files, err := expandFiles(cliCfg.TraceFiles)
	if err != nil {
		return fmt.Errorf("resolve trace files: %w", err)
	}

	// §14 step 5: submit one job per file to the worker pool.
	ctx := context.Background()
	results := make(chan jobResult, len(files))
	pool := worker.NewPool[string](cfg.WorkerConcurrency, len(files), func(ctx context.Context, path string) error {
		res := ingestFile(ctx, path, cfg, metrics, logger.With("run_id", runID))
		results <- res
		return res.err
	})
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	for _, f := range files {
		if err := pool.Submit(f); err != nil {
			return fmt.Errorf("submit %s: %w", f, err)
		}
	}
	// A batch driver runs until every submitted file finishes; there is
	// no operator-facing deadline to enforce here, so the timeout is
	// generous rather than meaningful.
	if err := pool.Stop(24 * time.Hour); err != nil {
		logger.Warn("worker pool did not drain cleanly", "error", err)
	}
	close(results)

	// §14 step 6: aggregate and report.
	total := stats.New()
	fatal := false
	for res := range results {
		mergeCounters(total, res.stats)
		if res.err != nil {
			kind := errors.Classify(res.err)
			logger.Error("file ingestion failed", "path", res.path, "kind", kind.String(), "error", res.err)
			if kind == errors.KindCorrupt || kind == errors.KindProtocolViolation {
				fatal = true
			}
		}
	}

	logger.Info("ingestion complete",
		"tokenizer_skipped_packets", total.Get(stats.TokenizerSkippedPackets),
		"interned_data_tokenizer_errors", total.Get(stats.InternedDataTokenizerErrors),
		"frame_timeline_event_parser_errors", total.Get(stats.FrameTimelineEventParserErrors),
		"clock_sync_failure", total.Get(stats.ClockSyncFailure),
	)

	if fatal {
		return fmt.Errorf("one or more files failed with a fatal error")
	}
	return nil
}

// mergeCounters folds src into dst; used to report one aggregate
// summary across every file a run ingested.
func mergeCounters(dst, src *stats.Counters) {
	if src == nil {
		return
	}
	for _, c := range []stats.Counter{
		stats.TokenizerSkippedPackets,
		stats.InternedDataTokenizerErrors,
		stats.FrameTimelineEventParserErrors,
		stats.ClockSyncFailure,
	} {
		dst.Add(c, src.Get(c))
	}
}

// expandFiles resolves each argument to one or more file paths,
// globbing directories one level deep (§11.1: "a list of trace file
// paths, or a directory, globbed").
func expandFiles(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			mi, err := os.Stat(m)
			if err == nil && !mi.IsDir() {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

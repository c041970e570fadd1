package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/c360/traceproc/config"
	trcerrors "github.com/c360/traceproc/errors"
	"github.com/c360/traceproc/metric"
	"github.com/c360/traceproc/pkg/retry"
	"github.com/c360/traceproc/reader"
	"github.com/c360/traceproc/sorter"
	"github.com/c360/traceproc/stats"
)

const readChunkSize = 256 << 10

// jobResult is one file's outcome, reported back to main for the
// aggregate exit code and summary log line (§14 step 6).
type jobResult struct {
	path  string
	stats *stats.Counters
	err   error
}

// ingestFile drives one file's C1-C7 pipeline end to end (§11.1). The
// open/read loop is retried against transient filesystem errors; a
// corrupt-trace error from the reader itself is never retried, since
// readAndParse wraps every reader error with retry.NonRetryable.
func ingestFile(ctx context.Context, path string, cfg *config.Config, metrics *metric.Registry, logger *slog.Logger) jobResult {
	start := time.Now()
	s := stats.New()

	var rdr *reader.Reader
	onPacket := sorter.Release(func(sorter.Entry) error { return nil })

	fileLogger := logger.With("path", path)
	err := retry.Do(ctx, cfg.Retry.ToRetryConfig(), func() error {
		rdr = reader.New(cfg.ToReaderOptions(), s, onPacket, fileLogger)
		return readAndParse(ctx, path, rdr)
	})

	metrics.ObserveIngestDuration(time.Since(start))
	if rdr != nil {
		metrics.SequenceGenerationsLive.Set(float64(rdr.LiveGenerations()))
		metrics.SorterPendingEntries.WithLabelValues(path).Set(float64(rdr.Pending()))
	}
	metrics.ObserveCounters(s)

	logger.Info("file ingestion finished", "path", path, "duration", time.Since(start), "error", errString(err))
	return jobResult{path: path, stats: s, err: err}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// readAndParse streams path through rdr in fixed-size chunks. A
// transient open/read failure is wrapped so retry.Do's classifier
// (via cfg.Retry.ToRetryConfig, which never inspects error content)
// simply retries every attempt up to MaxAttempts; ingestFile relies on
// the reader's own errors, which are never retryable, to abort the
// retry loop early via a non-retryable wrap.
func readAndParse(ctx context.Context, path string, rdr *reader.Reader) error {
	f, err := os.Open(path)
	if err != nil {
		return trcerrors.WrapTransient(fmt.Errorf("%w: %v", trcerrors.ErrInputUnavailable, err), "traceprocd", "readAndParse")
	}
	defer f.Close()

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if err := rdr.Parse(buf[:n]); err != nil {
				return retry.NonRetryable(err)
			}
		}
		if readErr == io.EOF {
			if err := rdr.NotifyEndOfFile(); err != nil {
				return retry.NonRetryable(err)
			}
			return nil
		}
		if readErr != nil {
			return trcerrors.WrapTransient(fmt.Errorf("%w: %v", trcerrors.ErrInputUnavailable, readErr), "traceprocd", "readAndParse")
		}
	}
}

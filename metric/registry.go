package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/traceproc/sequence"
	"github.com/c360/traceproc/sorter"
	"github.com/c360/traceproc/stats"
)

// Registry owns the daemon's Prometheus collectors: the four §6 stat
// counters, a sorter/generation gauge pair, and a per-file ingestion
// duration histogram, matching the source codebase's package-level
// Registry/MustRegister pattern narrowed to one subsystem instead of a
// dynamic per-service registrar.
type Registry struct {
	prometheusRegistry *prometheus.Registry

	TokenizerSkippedPackets        prometheus.Counter
	InternedDataTokenizerErrors    prometheus.Counter
	FrameTimelineEventParserErrors prometheus.Counter
	ClockSyncFailure               prometheus.Counter

	SorterPendingEntries      *prometheus.GaugeVec
	SequenceGenerationsLive   prometheus.Gauge
	IngestDurationSeconds     prometheus.Histogram
}

// NewRegistry constructs and registers every collector.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),

		TokenizerSkippedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceproc",
			Name:      "tokenizer_skipped_packets_total",
			Help:      "Packets skipped because needs_incremental_state or interned_data arrived on an invalid sequence.",
		}),
		InternedDataTokenizerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceproc",
			Name:      "interned_data_tokenizer_errors_total",
			Help:      "Packets carrying interning fields with no trusted_packet_sequence_id.",
		}),
		FrameTimelineEventParserErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceproc",
			Name:      "frame_timeline_event_parser_errors_total",
			Help:      "Zero-timestamp frame_timeline_event workaround applications.",
		}),
		ClockSyncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceproc",
			Name:      "clock_sync_failure_total",
			Help:      "Timestamps the clock tracker could not resolve to trace time.",
		}),
		SorterPendingEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "traceproc",
			Name:      "sorter_pending_entries",
			Help:      "Entries currently buffered in one pipeline's windowed sorter.",
		}, []string{"file"}),
		SequenceGenerationsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traceproc",
			Name:      "sequence_generations_live",
			Help:      "Count of sequence Generations with at least one live reference, sampled when a file's ingestion finishes.",
		}),
		IngestDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traceproc",
			Name:      "ingest_duration_seconds",
			Help:      "Wall time of one file's Parse+NotifyEndOfFile.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.prometheusRegistry.MustRegister(
		r.TokenizerSkippedPackets,
		r.InternedDataTokenizerErrors,
		r.FrameTimelineEventParserErrors,
		r.ClockSyncFailure,
		r.SorterPendingEntries,
		r.SequenceGenerationsLive,
		r.IngestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry, for
// wiring into promhttp.HandlerFor.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// ObserveCounters copies a finished pipeline's stats.Counters into the
// four counter series. Called once per file, not on the per-packet hot
// path (§13).
func (r *Registry) ObserveCounters(s *stats.Counters) {
	if s == nil {
		return
	}
	r.TokenizerSkippedPackets.Add(float64(s.Get(stats.TokenizerSkippedPackets)))
	r.InternedDataTokenizerErrors.Add(float64(s.Get(stats.InternedDataTokenizerErrors)))
	r.FrameTimelineEventParserErrors.Add(float64(s.Get(stats.FrameTimelineEventParserErrors)))
	r.ClockSyncFailure.Add(float64(s.Get(stats.ClockSyncFailure)))
}

// ObserveSorterPending records how many entries file's sorter is
// currently holding.
func (r *Registry) ObserveSorterPending(file string, s *sorter.Sorter) {
	if s == nil {
		return
	}
	r.SorterPendingEntries.WithLabelValues(file).Set(float64(s.Pending()))
}

// ObserveLiveGenerations samples reg for Generations with at least one
// live reference and records the count.
func (r *Registry) ObserveLiveGenerations(reg *sequence.Registry) {
	if reg == nil {
		return
	}
	var live int
	reg.ForEach(func(s *sequence.State) {
		if s.CurrentGeneration().Refs() > 0 {
			live++
		}
	})
	r.SequenceGenerationsLive.Set(float64(live))
}

// ObserveIngestDuration records how long one file's ingestion took.
func (r *Registry) ObserveIngestDuration(d time.Duration) {
	r.IngestDurationSeconds.Observe(d.Seconds())
}

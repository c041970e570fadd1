package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/c360/traceproc/pkg/retry"
	"github.com/c360/traceproc/reader"
)

// SortingMode selects how the reader orders packets before delivery.
type SortingMode string

const (
	SortingModeDefaultHeuristics SortingMode = "default_heuristics"
	SortingModeForceFullSort     SortingMode = "force_full_sort"
	// SortingModeForceFlushPeriodWindowedSort is a deprecated alias of
	// SortingModeDefaultHeuristics, accepted for backward compatibility
	// with older config files rather than rejected at load time.
	SortingModeForceFlushPeriodWindowedSort SortingMode = "force_flush_period_windowed_sort"
)

// DropFtraceDataBefore selects which ftrace events preceding tracing
// start are discarded. The daemon accepts and validates the value but
// the ingestion core (C1-C7) does not itself filter by data source
// start time; that belongs to the downstream table-filling stage this
// module does not implement.
type DropFtraceDataBefore string

const (
	DropFtraceTracingStarted        DropFtraceDataBefore = "tracing_started"
	DropFtraceNoDrop                DropFtraceDataBefore = "no_drop"
	DropFtraceAllDataSourcesStarted DropFtraceDataBefore = "all_data_sources_started"
)

// RetryConfig governs retries around input-source I/O (§11.1), never
// around a corrupt-trace error.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// ToRetryConfig translates the on-disk retry fields into pkg/retry's
// Config, used by the daemon to wrap input-source I/O (§11.1).
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxAttempts,
		InitialDelay: time.Duration(rc.BaseDelayMs) * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Config is the ingestion daemon's full on-disk configuration.
type Config struct {
	SortingMode            SortingMode          `yaml:"sorting_mode"`
	SortWindowMs           int64                `yaml:"sort_window_ms"`
	IngestFtraceInRawTable bool                 `yaml:"ingest_ftrace_in_raw_table"`
	DropFtraceDataBefore   DropFtraceDataBefore `yaml:"drop_ftrace_data_before"`
	SkipBuiltinMetricPaths []string             `yaml:"skip_builtin_metric_paths"`

	WorkerConcurrency int         `yaml:"worker_concurrency"`
	Retry             RetryConfig `yaml:"retry"`

	LogLevel          string `yaml:"log_level"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
}

// Default returns the configuration the daemon runs with when no file
// overrides a field, matching every default called out in §12.
func Default() *Config {
	return &Config{
		SortingMode:            SortingModeDefaultHeuristics,
		SortWindowMs:           180,
		IngestFtraceInRawTable: false,
		DropFtraceDataBefore:   DropFtraceTracingStarted,
		SkipBuiltinMetricPaths: nil,
		WorkerConcurrency:      4,
		Retry:                  RetryConfig{MaxAttempts: 3, BaseDelayMs: 50},
		LogLevel:               "info",
		MetricsListenAddr:      ":9090",
	}
}

// Clone returns a deep copy, safe to mutate without affecting the
// original.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.SkipBuiltinMetricPaths != nil {
		out.SkipBuiltinMetricPaths = append([]string(nil), c.SkipBuiltinMetricPaths...)
	}
	return &out
}

// normalizedSortingMode maps the deprecated alias onto the mode it
// stands for; everything else in this package treats the result as
// canonical.
func (c *Config) normalizedSortingMode() SortingMode {
	if c.SortingMode == SortingModeForceFlushPeriodWindowedSort {
		return SortingModeDefaultHeuristics
	}
	return c.SortingMode
}

// ToReaderOptions translates the validated sorting fields into
// reader.Options (§14 step 4). Callers must Validate first.
func (c *Config) ToReaderOptions() reader.Options {
	if c.normalizedSortingMode() == SortingModeForceFullSort {
		return reader.Options{ForceFullSort: true}
	}
	return reader.Options{SortWindowNs: c.SortWindowMs * 1_000_000}
}

// SafeConfig is a mutex-guarded snapshot-on-read wrapper, matching the
// source codebase's own pattern for handing out configuration to
// concurrent readers without letting a hot-reload race a consumer
// mid-read.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg, defaulting to Default() if cfg is nil.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

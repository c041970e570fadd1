package config

import (
	"fmt"

	trcerrors "github.com/c360/traceproc/errors"
)

// Validator performs one cross-field check against a loaded Config.
// Manager runs every registered Validator before a config is accepted,
// the same shape the source codebase uses for component schema checks,
// narrowed here to plain function-shaped rules instead of a registry
// keyed by component type.
type Validator interface {
	Validate(cfg *Config) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(cfg *Config) error

func (f ValidatorFunc) Validate(cfg *Config) error { return f(cfg) }

// DefaultValidators is the set of checks every loaded Config must pass.
func DefaultValidators() []Validator {
	return []Validator{
		ValidatorFunc(validateSortingMode),
		ValidatorFunc(validateSortWindow),
		ValidatorFunc(validateDropFtraceDataBefore),
		ValidatorFunc(validateWorkerConcurrency),
		ValidatorFunc(validateRetry),
		ValidatorFunc(validateLogLevel),
	}
}

// Validate runs cfg through DefaultValidators, wrapped as
// errors.ErrInvalidConfig so the daemon can classify a bad config file
// the same way it classifies any other fatal startup error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return trcerrors.ErrMissingConfig
	}
	for _, v := range DefaultValidators() {
		if err := v.Validate(cfg); err != nil {
			return fmt.Errorf("%w: %v", trcerrors.ErrInvalidConfig, err)
		}
	}
	return nil
}

func validateSortingMode(cfg *Config) error {
	switch cfg.SortingMode {
	case SortingModeDefaultHeuristics, SortingModeForceFullSort, SortingModeForceFlushPeriodWindowedSort:
		return nil
	default:
		return fmt.Errorf("sorting_mode: unknown value %q", cfg.SortingMode)
	}
}

func validateSortWindow(cfg *Config) error {
	if cfg.normalizedSortingMode() == SortingModeForceFullSort {
		return nil
	}
	if cfg.SortWindowMs <= 0 {
		return fmt.Errorf("sort_window_ms: must be positive when sorting_mode != force_full_sort, got %d", cfg.SortWindowMs)
	}
	return nil
}

func validateDropFtraceDataBefore(cfg *Config) error {
	switch cfg.DropFtraceDataBefore {
	case DropFtraceTracingStarted, DropFtraceNoDrop, DropFtraceAllDataSourcesStarted:
		return nil
	default:
		return fmt.Errorf("drop_ftrace_data_before: unknown value %q", cfg.DropFtraceDataBefore)
	}
}

func validateWorkerConcurrency(cfg *Config) error {
	if cfg.WorkerConcurrency < 1 {
		return fmt.Errorf("worker_concurrency: must be >= 1, got %d", cfg.WorkerConcurrency)
	}
	return nil
}

func validateRetry(cfg *Config) error {
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts: must be >= 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelayMs < 0 {
		return fmt.Errorf("retry.base_delay_ms: must be >= 0, got %d", cfg.Retry.BaseDelayMs)
	}
	return nil
}

func validateLogLevel(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level: unknown value %q", cfg.LogLevel)
	}
}

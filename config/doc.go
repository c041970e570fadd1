// Package config loads and validates the ingestion daemon's on-disk
// configuration: sorting behavior, worker concurrency, retry policy,
// logging, and the metrics listener address.
//
// Config is loaded from YAML via Load, validated against the
// Validator interface, and handed out through SafeConfig, a
// mutex-guarded snapshot that callers may hold across the lifetime of
// a run without racing a hot-reload of the mutable fields (worker
// concurrency, log level).
package config

// Package metric exports the ingestion daemon's Prometheus series: the
// four §6 stat counters, sorter/generation gauges, and a per-file
// ingestion duration histogram, at whatever address config.Config's
// metrics_listen_addr names.
package metric

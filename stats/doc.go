// Package stats implements the ingestion core's counter table (§6).
// Every component shares a single Counters instance through which it
// reports soft failures and workarounds; nothing in the core ever
// consults these values to change control flow, they exist purely for
// external observability.
package stats

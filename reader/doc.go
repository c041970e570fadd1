// Package reader implements the trace reader (§4.6), the orchestrator
// that owns one ingestion session end to end: it drives the tokenizer
// over incoming chunks, threads each resulting packet through sequence
// state, clock synchronization and module dispatch, and finally hands
// it to the sorter for timestamp-ordered release.
//
// Reader is the package most callers of this module actually use;
// everything else here is a component it wires together.
package reader

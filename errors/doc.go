// Package errors classifies ingestion failures into the four kinds the
// trace reader distinguishes: corrupt input and protocol violations are
// fatal and abort ingestion, soft data loss is counted and ingestion
// continues, and lifecycle warnings are logged once and otherwise
// ignored.
//
// Classification is driven by sentinel errors and errors.Is/errors.As,
// not string matching. Wrap/WrapCorrupt/WrapProtocolViolation attach a
// component/operation prefix consistently across the ingestion core and
// the daemon that drives it.
package errors

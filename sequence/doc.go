// Package sequence implements the per-producer sequence state registry
// (§4.4). Each trusted_packet_sequence_id gets its own State, tracking
// whether its incremental state is currently valid and holding the
// chain of Generations produced every time that state is cleared or
// its TracePacketDefaults change. A detected packet loss only marks the
// state invalid; it does not start a new Generation.
//
// A Generation owns the interned message tables and the most recent
// TracePacketDefaults for one incremental-state epoch. Because a
// packet already queued in the sorter may still reference interned
// data from a Generation the sequence has since moved past, ownership
// of a Generation is shared: it stays alive for as long as either the
// registry or an outstanding packet handle is holding it.
package sequence

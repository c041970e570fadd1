// Package sorter implements the bounded-memory windowed sorter (§4.7),
// the final stage before packets reach downstream parsers. It buffers
// packets keyed by trace time and releases them once it can prove no
// earlier-timestamped packet can still arrive: either because the
// buffered window has slid past it, or because a flush / read-buffer
// barrier from the producer guarantees nothing older is still in
// flight.
//
// Two release strategies are supported: windowed, which trades a
// bounded reordering tolerance for bounded memory, and full-sort,
// which buffers an entire trace and emits it in one pass at end of
// file. Which one is in effect is a configuration choice, not
// something the sorter decides for itself.
package sorter

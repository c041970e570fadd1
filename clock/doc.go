// Package clock implements the clock synchronization engine (§4.5). It
// ingests the pairwise clock relationships carried by ClockSnapshot
// packets, builds a graph connecting every observed clock domain, and
// answers "what is this timestamp in trace time" by composing edges
// along a path to the designated trace-time clock.
//
// Clock ids scoped to a single producer sequence (the range [64, 127])
// are rewritten to a globally unique id before they ever reach the
// graph, so two unrelated sequences that both happen to use local
// clock id 64 never collide.
package clock

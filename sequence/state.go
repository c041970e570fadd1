package sequence

import (
	"errors"
	"sync"

	"github.com/c360/traceproc/blob"
)

// ErrIncrementalStateInvalid is returned by InternMessage when the
// sequence's incremental state is
// not currently trustworthy: either no incremental_state_cleared has
// ever been observed on this sequence, or a packet loss invalidated it
// and no clear has arrived since. Callers are expected to count a
// skipped packet and move on rather than treat this as fatal.
var ErrIncrementalStateInvalid = errors.New("sequence: incremental state invalid, awaiting clear")

// State tracks one trusted_packet_sequence_id's incremental-state
// validity and the chain of Generations it has produced. A sequence
// starts out invalid: a producer's first packets are expected to carry
// SEQ_INCREMENTAL_STATE_CLEARED before anything interned on that
// sequence can be trusted (§4.3, edge case "no clear observed yet").
type State struct {
	mu    sync.Mutex
	id    uint32
	valid bool
	gen   *Generation
	nextID uint64
}

func newState(id uint32) *State {
	s := &State{id: id}
	s.gen = newGeneration(0)
	s.nextID = 1
	return s
}

// ID returns the trusted_packet_sequence_id this State belongs to.
func (s *State) ID() uint32 { return s.id }

// IsValid reports whether incremental state may currently be trusted.
func (s *State) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// OnIncrementalStateCleared starts a fresh Generation and marks the
// sequence valid. The registry's reference to the outgoing Generation
// is released; it survives only if something else still holds it.
func (s *State) OnIncrementalStateCleared() {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.gen
	s.gen = newGeneration(s.nextID)
	s.nextID++
	s.valid = true
	old.Release()
}

// OnPacketLoss marks the sequence's incremental state untrustworthy.
// The reader calls it when a packet on this sequence carries
// previous_packet_dropped (§4.3, "recovering after dropped packets"). The current
// Generation is left in place — packets already resolved against it
// downstream remain valid — but no further interning is trusted until
// the next clear.
func (s *State) OnPacketLoss() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

// CurrentGeneration returns the active Generation without taking a
// reference. Callers that need to keep a handle beyond the current
// call (e.g. to attach it to a sorter entry) must call Retain on it
// themselves before releasing the registry's own reference elsewhere.
func (s *State) CurrentGeneration() *Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// InternMessage stores payload for key in the current Generation. It
// fails with ErrIncrementalStateInvalid if the sequence's state is not
// currently trusted; the caller is expected to increment the
// tokenizer_skipped_packets stat and drop the field rather than treat
// this as a hard error.
func (s *State) InternMessage(key InternKey, payload blob.View) error {
	s.mu.Lock()
	if !s.valid {
		s.mu.Unlock()
		return ErrIncrementalStateInvalid
	}
	gen := s.gen
	s.mu.Unlock()
	gen.Intern(key, payload)
	return nil
}

// UpdateTracePacketDefaults records a new default timestamp_clock_id.
// If it actually differs from the current Generation's defaults, this
// forks a fresh Generation that inherits the interned table by
// reference (§4.4): nothing about interned data changed, only the
// bookkeeping identity of "current generation", so packets already
// emitted against the old Generation still see consistent interned
// data through it. Unlike InternMessage, this has no validity
// precondition: trace_packet_defaults is accepted whether or not the
// sequence has ever been cleared.
func (s *State) UpdateTracePacketDefaults(clockID uint32) {
	s.mu.Lock()
	old := s.gen
	if existing, ok := old.DefaultsTimestampClockID(); ok && existing == clockID {
		s.mu.Unlock()
		return
	}
	next := forkGeneration(old, s.nextID)
	s.nextID++
	next.SetDefaultsTimestampClockID(clockID)
	s.gen = next
	s.mu.Unlock()
	old.Release()
}

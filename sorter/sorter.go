package sorter

import "container/heap"

// Mode selects how the sorter decides when a buffered Entry is safe to
// release.
type Mode int

const (
	// ModeWindowed releases an entry once the highest timestamp seen so
	// far has advanced more than the configured window past it. This
	// bounds memory at the cost of tolerating at most Window worth of
	// reordering between producers.
	ModeWindowed Mode = iota

	// ModeFullSort buffers every packet and releases the entire trace,
	// in order, only at NotifyEndOfFile. Memory is unbounded in trace
	// size; ordering is exact.
	ModeFullSort
)

// Release is called once per Entry, in non-decreasing TraceTimeNs
// order, as the sorter decides each one is safe to hand to downstream
// parsers.
type Release func(Entry) error

// Sorter is the windowed/full sort stage. It is not safe for
// concurrent use.
type Sorter struct {
	mode     Mode
	windowNs int64
	release  Release

	heap  entryHeap
	seq   uint64
	maxTs int64
	has   bool
}

// New returns a Sorter in mode, calling onRelease for each entry it
// decides to emit. windowNs is ignored in ModeFullSort.
func New(mode Mode, windowNs int64, onRelease Release) *Sorter {
	return &Sorter{mode: mode, windowNs: windowNs, release: onRelease}
}

// Push buffers e for later release. It takes ownership of one
// reference on e.Payload's Blob (and, if set, of e.Keepalive): both are
// released exactly once, when the entry is eventually emitted.
func (s *Sorter) Push(e Entry) error {
	e.seq = s.seq
	s.seq++
	if !s.has || e.TraceTimeNs > s.maxTs {
		s.maxTs = e.TraceTimeNs
		s.has = true
	}
	heap.Push(&s.heap, e)

	if s.mode == ModeWindowed {
		return s.flushBefore(s.maxTs - s.windowNs)
	}
	return nil
}

// MaxTimestamp returns the highest trace-time timestamp pushed so far.
// The second return value is false if nothing has been pushed yet.
func (s *Sorter) MaxTimestamp() (int64, bool) {
	return s.maxTs, s.has
}

// Pending reports how many entries are currently buffered.
func (s *Sorter) Pending() int { return s.heap.Len() }

// NotifyFlushEvent releases every entry with a timestamp at or below
// thresholdNs, the flush barrier's own timestamp (the reader passes the
// service_event packet's timestamp unconverted).
// A producer's flush is a guarantee that nothing it has already
// written can still be reordered ahead of that point, so windowed
// mode's usual reordering tolerance can be safely collapsed to zero up
// to it for one pass. In ModeFullSort this is a no-op: nothing
// releases before NotifyEndOfFile regardless of barriers.
func (s *Sorter) NotifyFlushEvent(thresholdNs int64) error {
	if s.mode == ModeFullSort {
		return nil
	}
	return s.flushBefore(thresholdNs)
}

// NotifyReadBufferEvent is the same barrier as NotifyFlushEvent,
// triggered when the service reports it has drained its ring buffers
// rather than when a data source explicitly flushed.
func (s *Sorter) NotifyReadBufferEvent(thresholdNs int64) error {
	return s.NotifyFlushEvent(thresholdNs)
}

// NotifyEndOfFile drains every remaining buffered entry regardless of
// mode or window, in trace-time order.
func (s *Sorter) NotifyEndOfFile() error {
	for s.heap.Len() > 0 {
		e := heap.Pop(&s.heap).(Entry)
		if err := s.emit(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sorter) flushBefore(threshold int64) error {
	for s.heap.Len() > 0 && s.heap[0].TraceTimeNs <= threshold {
		e := heap.Pop(&s.heap).(Entry)
		if err := s.emit(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sorter) emit(e Entry) error {
	err := s.release(e)
	if e.Keepalive != nil {
		e.Keepalive.Release()
	}
	e.Payload.Release()
	return err
}

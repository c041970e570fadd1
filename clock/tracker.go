package clock

import (
	"fmt"
	"sync"

	"github.com/c360/traceproc/stats"
	"github.com/c360/traceproc/wire"
)

type edge struct {
	offsetNs   int64
	snapshotID uint64
}

// SnapshotRow is one row of the clock-snapshot diagnostics table
// (§4.5): one row per clock participating in a ClockSnapshot, keyed by
// the snapshot that produced it.
type SnapshotRow struct {
	TraceTimeTs  int64
	ClockID      uint64
	ClockValue   int64
	ClockName    string // empty for a clock with no canonical builtin name
	SnapshotID   uint64
}

type cacheKey struct {
	clockID    uint64
	snapshotID uint64
}

// Tracker is the clock synchronization graph for one trace. Every
// method takes an internal mutex, so it is safe for concurrent use; the
// ingestion core drives it from a single goroutine per trace.
type Tracker struct {
	mu sync.Mutex

	traceTimeClock    uint64
	hasTraceTimeClock bool

	nextSnapshotID uint64

	unitMultiplier map[uint64]uint64
	lastAbsoluteNs map[uint64]int64

	// edges[a][b] converts a timestamp on clock a to clock b: b = a + offsetNs.
	edges map[uint64]map[uint64]edge

	cache map[cacheKey]int64

	stats *stats.Counters

	rows []SnapshotRow
}

// NewTracker returns a Tracker that reports resolution failures to s.
// Passing a nil s is fine for tests that don't care about counters.
func NewTracker(s *stats.Counters) *Tracker {
	return &Tracker{
		unitMultiplier: make(map[uint64]uint64),
		lastAbsoluteNs: make(map[uint64]int64),
		edges:          make(map[uint64]map[uint64]edge),
		cache:          make(map[cacheKey]int64),
		stats:          s,
		// BOOTTIME is the conventional default trace-time clock; an
		// explicit SetTraceTimeClock (from a ClockSnapshot's
		// primary_trace_clock) overrides it.
		traceTimeClock: uint64(Boottime),
	}
}

// SetTraceTimeClock designates which global clock id every timestamp
// is ultimately converted to. It must be called, if at all, before any
// ToTraceTime call whose result should reflect it.
func (t *Tracker) SetTraceTimeClock(globalID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traceTimeClock = globalID
	t.hasTraceTimeClock = true
	t.cache = make(map[cacheKey]int64)
}

// TraceTimeClock returns the clock every timestamp is converted to.
func (t *Tracker) TraceTimeClock() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.traceTimeClock
}

// ResetSequenceScopedClocks discards accumulated incremental-clock
// state for every clock id scoped to seqID. The reader calls this when
// a sequence's incremental state is cleared (§4.4): an
// incremental_state_cleared packet resets the producer's own delta
// counters, so any absolute value this tracker previously accumulated
// for one of that sequence's local clocks would otherwise be summed
// against a delta the producer no longer intends as relative to it.
// Builtin, non-sequence-scoped clocks are unaffected.
func (t *Tracker) ResetSequenceScopedClocks(seqID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for gid := range t.lastAbsoluteNs {
		if gid>>32 == uint64(seqID) && gid&0xFFFFFFFF >= uint64(SeqScopedClockIDMin) {
			delete(t.lastAbsoluteNs, gid)
		}
	}
}

// AddSnapshot records one ClockSnapshot's pairwise relationships. seqID
// is the sequence the snapshot arrived on, used to resolve any
// sequence-scoped clock ids among entries. traceTimeTs is the
// snapshot-carrying packet's own declared timestamp (0 if it had
// none), recorded verbatim into the diagnostics table rather than
// converted, since the snapshot itself may be what first makes
// conversion possible.
func (t *Tracker) AddSnapshot(seqID uint32, entries []wire.ClockEntry, traceTimeTs int64) {
	if len(entries) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSnapshotID++
	snapshotID := t.nextSnapshotID

	type resolved struct {
		id uint64
		ns int64
	}
	values := make([]resolved, 0, len(entries))
	for _, e := range entries {
		mult := e.UnitMultiplierNs
		if mult == 0 {
			mult = 1
		}
		gid := GlobalID(seqID, uint32(e.ID))
		t.unitMultiplier[gid] = mult

		ns := int64(e.Value) * int64(mult)
		if e.IsIncremental {
			ns += t.lastAbsoluteNs[gid]
		}
		t.lastAbsoluteNs[gid] = ns
		values = append(values, resolved{id: gid, ns: ns})

		name, _ := BuiltinName(uint32(e.ID))
		t.rows = append(t.rows, SnapshotRow{
			TraceTimeTs: traceTimeTs,
			ClockID:     gid,
			ClockValue:  ns,
			ClockName:   name,
			SnapshotID:  snapshotID,
		})
	}

	for i := range values {
		for j := range values {
			if i == j {
				continue
			}
			t.setEdge(values[i].id, values[j].id, values[j].ns-values[i].ns, snapshotID)
		}
	}
}

// SnapshotRows returns the accumulated clock-snapshot diagnostics
// table, one row per clock per ClockSnapshot seen so far.
func (t *Tracker) SnapshotRows() []SnapshotRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SnapshotRow(nil), t.rows...)
}

func (t *Tracker) setEdge(from, to uint64, offsetNs int64, snapshotID uint64) {
	row, ok := t.edges[from]
	if !ok {
		row = make(map[uint64]edge)
		t.edges[from] = row
	}
	if existing, ok := row[to]; ok && existing.snapshotID >= snapshotID {
		return
	}
	row[to] = edge{offsetNs: offsetNs, snapshotID: snapshotID}
}

// ToTraceTime converts ts, reported on clockID as observed on sequence
// seqID, to the designated trace-time clock, in nanoseconds. It fails
// if no chain of ClockSnapshots connects clockID to the trace-time
// clock, and counts the failure as a clock_sync_failure in the stats
// the Tracker was created with (if any). The reader
// drops the packet outright on this path rather than forwarding a raw,
// un-converted timestamp — the one exception is the chrome-best-effort
// clock path, which forwards the raw value on failure instead of
// calling this method's error a drop signal.
func (t *Tracker) ToTraceTime(seqID uint32, clockID uint32, ts uint64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gid := GlobalID(seqID, clockID)
	mult := t.unitMultiplier[gid]
	if mult == 0 {
		mult = 1
	}
	srcNs := int64(ts) * int64(mult)

	if gid == t.traceTimeClock {
		return srcNs, nil
	}

	key := cacheKey{clockID: gid, snapshotID: t.nextSnapshotID}
	if offset, ok := t.cache[key]; ok {
		return srcNs + offset, nil
	}

	offset, ok := t.bfsOffset(gid, t.traceTimeClock)
	if !ok {
		if t.stats != nil {
			t.stats.Increment(stats.ClockSyncFailure)
		}
		return 0, fmt.Errorf("clock: no path from clock %d to trace-time clock %d", gid, t.traceTimeClock)
	}
	t.cache[key] = offset
	return srcNs + offset, nil
}

// bfsOffset finds the cumulative offset converting a timestamp on from
// to to, preferring, at each edge, whatever snapshot most recently
// updated it (edges already store only the newest snapshot per pair).
func (t *Tracker) bfsOffset(from, to uint64) (int64, bool) {
	if from == to {
		return 0, true
	}
	type item struct {
		node   uint64
		offset int64
	}
	visited := map[uint64]bool{from: true}
	queue := []item{{node: from, offset: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next, e := range t.edges[cur.node] {
			if visited[next] {
				continue
			}
			total := cur.offset + e.offsetNs
			if next == to {
				return total, true
			}
			visited[next] = true
			queue = append(queue, item{node: next, offset: total})
		}
	}
	return 0, false
}

package sequence

import (
	"sync"
	"sync/atomic"

	"github.com/c360/traceproc/blob"
)

// InternKey identifies one interned entry: the TracePacket field it
// arrived on (interned data is namespaced per field, e.g. event names
// versus event categories) plus the interning id assigned by the
// producer.
type InternKey struct {
	FieldID  uint32
	InternID uint64
}

// internedTable is the interned-message map underlying one or more
// Generations. It is refcounted independently of any single Generation
// because a defaults-only change forks a new Generation that shares
// its predecessor's interned data by reference rather than copying it
// (§4.4): the table must outlive whichever of the two Generations that
// share it is released last.
type internedTable struct {
	refs int32

	mu   sync.RWMutex
	data map[InternKey]blob.View
}

func newInternedTable() *internedTable {
	return &internedTable{refs: 1, data: make(map[InternKey]blob.View)}
}

func (tbl *internedTable) retain() *internedTable {
	atomic.AddInt32(&tbl.refs, 1)
	return tbl
}

func (tbl *internedTable) release() {
	if atomic.AddInt32(&tbl.refs, -1) != 0 {
		return
	}
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	for k, v := range tbl.data {
		v.Release()
		delete(tbl.data, k)
	}
}

func (tbl *internedTable) intern(key InternKey, payload blob.View) {
	retained := payload.Retain()
	tbl.mu.Lock()
	if old, ok := tbl.data[key]; ok {
		old.Release()
	}
	tbl.data[key] = retained
	tbl.mu.Unlock()
}

func (tbl *internedTable) lookup(key InternKey) (blob.View, bool) {
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	v, ok := tbl.data[key]
	return v, ok
}

// Generation holds the interned-message table and the most recent
// TracePacketDefaults in effect for one epoch of a sequence's
// incremental state. It is shared-ownership: the registry holds one
// reference for as long as the epoch is current, and any packet queued
// downstream (in the sorter, say) that resolved a value out of this
// Generation retains its own reference so the Generation — and the
// interned data it exposes — survives a later clear or defaults fork.
type Generation struct {
	id    uint64
	refs  int32
	table *internedTable

	mu                 sync.RWMutex
	hasDefaultsClockID bool
	defaultsClockID    uint32
}

// newGeneration starts a Generation with its own independent, empty
// interned table — used on OnIncrementalStateCleared, where the
// producer has told us prior interned state can no longer be trusted.
func newGeneration(id uint64) *Generation {
	return &Generation{id: id, refs: 1, table: newInternedTable()}
}

// forkGeneration starts a new epoch that shares prev's interned table
// by reference, used when only TracePacketDefaults changed: nothing
// invalidated the interned data, so packets resolved against either
// generation see the same entries.
func forkGeneration(prev *Generation, id uint64) *Generation {
	return &Generation{id: id, refs: 1, table: prev.table.retain()}
}

// ID returns the monotonically increasing epoch number, unique within
// one sequence, assigned in creation order starting at zero.
func (g *Generation) ID() uint64 { return g.id }

// Retain adds a reference and returns g, for a caller that needs to
// keep the Generation alive independently of the registry's own
// lifecycle (e.g. a sorter entry carrying a resolved interned value).
func (g *Generation) Retain() *Generation {
	atomic.AddInt32(&g.refs, 1)
	return g
}

// Release drops a reference. Once every holder — the registry included
// — has released, the shared interned table's own reference is
// dropped too, freeing its entries only once every Generation that
// ever forked from it has also let go.
func (g *Generation) Release() {
	if atomic.AddInt32(&g.refs, -1) != 0 {
		return
	}
	g.table.release()
}

// Refs reports the current reference count, for tests and diagnostics.
func (g *Generation) Refs() int32 { return atomic.LoadInt32(&g.refs) }

// Intern stores payload under key, retaining it so the Generation keeps
// it alive independently of whatever buffer it was decoded from. A
// second Intern for the same key replaces the previous value and
// releases it, matching the producer's own "redefine an interning id"
// semantics.
func (g *Generation) Intern(key InternKey, payload blob.View) {
	g.table.intern(key, payload)
}

// Lookup returns the interned payload for key, if any.
func (g *Generation) Lookup(key InternKey) (blob.View, bool) {
	return g.table.lookup(key)
}

// SetDefaultsTimestampClockID records the clock id a TracePacketDefaults
// submessage designated as this sequence's default for packets that
// omit an explicit timestamp_clock_id. Unlike interned data, defaults
// are per-Generation, never shared across a fork: the new Generation
// starts with none until its own TracePacketDefaults arrives.
func (g *Generation) SetDefaultsTimestampClockID(clockID uint32) {
	g.mu.Lock()
	g.hasDefaultsClockID = true
	g.defaultsClockID = clockID
	g.mu.Unlock()
}

// DefaultsTimestampClockID returns the sequence's default clock id, if
// a TracePacketDefaults has ever been seen in this Generation.
func (g *Generation) DefaultsTimestampClockID() (uint32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.defaultsClockID, g.hasDefaultsClockID
}

package sorter

import "github.com/c360/traceproc/blob"

// Keepalive is held alive for as long as an Entry sits in the sorter's
// buffer and released the moment the entry is emitted or discarded. A
// sequence Generation satisfies this so interned data it holds stays
// valid for as long as a packet resolved against it is still pending.
type Keepalive interface {
	Release()
}

// Entry is one packet awaiting release, in trace time.
type Entry struct {
	TraceTimeNs int64
	Payload     blob.View
	Keepalive   Keepalive

	seq uint64 // insertion order, for stable tie-breaking
}

// entryHeap is a container/heap.Interface min-heap over Entry, ordered
// by TraceTimeNs and, for equal timestamps, by arrival order — matching
// the "packets with equal trace time keep sequence order" invariant.
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].TraceTimeNs != h[j].TraceTimeNs {
		return h[i].TraceTimeNs < h[j].TraceTimeNs
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

package module

import (
	"fmt"
	"sync"

	"github.com/c360/traceproc/wire"
)

// Handler processes one field the core itself does not interpret. pkt
// gives access to every other field on the same TracePacket, so a
// handler can correlate its own field against, say, the packet's
// resolved sequence id without the core needing to thread that through
// separately.
type Handler func(pkt *wire.PacketDecoder, f wire.Field) error

// Registry maps TracePacket field ids to the handlers interested in
// them. It is safe for concurrent Register calls, but Dispatch itself
// runs on the single ingestion goroutine like everything else in the
// core.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint32][]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint32][]Handler)}
}

// Register adds h to the list of handlers invoked for fieldID. Multiple
// modules may register for the same field id; they run in registration
// order, and a handler that returns an error stops Dispatch before any
// later handler runs.
func (r *Registry) Register(fieldID uint32, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[fieldID] = append(r.handlers[fieldID], h)
}

// Dispatch walks every field of pkt above the range the core interprets
// directly and invokes any handlers registered for it. It stops and
// returns the first error a handler produces.
func (r *Registry) Dispatch(pkt *wire.PacketDecoder) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range pkt.Fields() {
		if f.ID <= wire.FieldMaxKnown {
			continue
		}
		for _, h := range r.handlers[f.ID] {
			if err := h(pkt, f); err != nil {
				return fmt.Errorf("module: handler for field %d: %w", f.ID, err)
			}
		}
	}
	return nil
}

package blob

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Blob is an immutable byte buffer with shared ownership. Nothing may
// mutate data after New returns; every View sliced from the Blob (or
// from another View over the same Blob) shares the same backing array.
type Blob struct {
	data []byte
	refs int32
}

// New wraps data as a Blob, owned by the single View returned from
// Whole. Callers should not retain a reference to data after this call.
func New(data []byte) *Blob {
	return &Blob{data: data}
}

func (b *Blob) retain() {
	atomic.AddInt32(&b.refs, 1)
}

// release drops a reference. Once every outstanding View has released
// the Blob, the backing array is dropped so the garbage collector can
// reclaim it independently of anything else still holding the *Blob.
func (b *Blob) release() {
	if atomic.AddInt32(&b.refs, -1) == 0 {
		b.data = nil
	}
}

// Refs reports the number of Views currently keeping the Blob alive.
// It exists for leak detection in tests and diagnostics, not for
// production control flow.
func (b *Blob) Refs() int32 {
	return atomic.LoadInt32(&b.refs)
}

// View is an offset+length window into a Blob plus the shared handle
// that keeps it alive. Views are the only currency passed between
// ingestion components; slicing one never copies the underlying bytes.
type View struct {
	blob   *Blob
	offset int
	length int
}

// Whole returns a View spanning the entirety of b, retaining it.
func Whole(b *Blob) View {
	b.retain()
	return View{blob: b, offset: 0, length: len(b.data)}
}

// Empty returns the zero View: no backing Blob, zero length.
func Empty() View { return View{} }

// IsZero reports whether v has no backing Blob.
func (v View) IsZero() bool { return v.blob == nil }

// Offset reports v's starting position within its backing Blob, for
// diagnostics that want to point at "where in the buffer" a packet
// came from without threading a separate counter through the reader.
func (v View) Offset() int { return v.offset }

// Len returns the number of bytes covered by the view.
func (v View) Len() int { return v.length }

// Bytes returns the readable byte range of the view. The returned
// slice aliases the Blob's backing array; it must not be mutated, and
// must not be retained past the lifetime of v (or a Retain of v).
func (v View) Bytes() []byte {
	if v.blob == nil {
		return nil
	}
	return v.blob.data[v.offset : v.offset+v.length]
}

// Slice returns the sub-view [offset, offset+size) relative to v,
// sharing ownership of v's Blob. It fails if the requested range falls
// outside v.
func (v View) Slice(offset, size int) (View, error) {
	if offset < 0 || size < 0 || offset+size > v.length {
		return View{}, fmt.Errorf("blob: slice [%d:%d) out of bounds for view of length %d", offset, offset+size, v.length)
	}
	if v.blob != nil {
		v.blob.retain()
	}
	return View{blob: v.blob, offset: v.offset + offset, length: size}, nil
}

// Retain adds a reference to v's Blob and returns v unchanged, so that
// a caller storing v beyond the scope it was received in can keep it
// alive independently of the original owner's Release.
func (v View) Retain() View {
	if v.blob != nil {
		v.blob.retain()
	}
	return v
}

// Release drops this handle's ownership stake in the Blob backing v.
// It is a no-op on the zero View.
func (v View) Release() {
	if v.blob != nil {
		v.blob.release()
	}
}

// OffsetOf reports the offset within v of a byte slice previously
// obtained from v.Bytes() (directly, or via a sub-decoder operating
// over it without threading offsets through every call), as used by
// partial decoders that hand back payload pointers into the backing
// array. The second return value is false if sub does not alias v's
// backing array within v's bounds.
func (v View) OffsetOf(sub []byte) (int, bool) {
	if v.blob == nil || len(sub) == 0 || len(v.blob.data) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&v.blob.data[0]))
	ptr := uintptr(unsafe.Pointer(&sub[0]))
	if ptr < base {
		return 0, false
	}
	off := int(ptr - base)
	if off < v.offset || off+len(sub) > v.offset+v.length {
		return 0, false
	}
	return off - v.offset, true
}

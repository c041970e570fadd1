package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/traceproc/blob"
)

// Type is a wire-format encoding, mirroring the handful of protobuf
// wire types the tokenizer and reader need to distinguish.
type Type uint8

const (
	TypeVarint  Type = 0
	TypeFixed64 Type = 1
	TypeBytes   Type = 2
	TypeFixed32 Type = 5
)

// Field is one decoded (tag, payload) pair. For Varint, Fixed32 and
// Fixed64 fields the numeric value is available in Varint (fixed-width
// values are zero-extended into the same uint64). For Bytes fields,
// Payload is a zero-copy View into the field's own bytes.
type Field struct {
	ID      uint32
	Type    Type
	Varint  uint64
	Payload blob.View
}

// AsBool interprets a scalar field the way protobuf booleans are
// encoded on the wire: any non-zero varint is true.
func (f Field) AsBool() bool { return f.Varint != 0 }

// Decoder performs a single, non-allocating pass over a tag-length-value
// encoded View, yielding one Field per call to Next. It never
// materializes a value the caller doesn't ask for: length-delimited
// fields are handed back as sub-views, not copied or parsed further.
type Decoder struct {
	view blob.View
	pos  int
}

// NewDecoder returns a Decoder over v. The Decoder does not take
// ownership of v; the caller remains responsible for releasing it.
func NewDecoder(v blob.View) *Decoder {
	return &Decoder{view: v}
}

// BytesLeft reports how many bytes remain unparsed. A non-zero value
// after the caller believes it has consumed every known field signals
// trailing garbage: the trace is probably corrupt.
func (d *Decoder) BytesLeft() int {
	return d.view.Len() - d.pos
}

// Consumed reports how many bytes of the view have been consumed by
// completed Next() calls. Callers that need to recover the position a
// failed Next() started from should snapshot this before calling it.
func (d *Decoder) Consumed() int {
	return d.pos
}

// Next decodes the next field. ok is false once the view is exhausted;
// err is non-nil if the encoding is malformed or truncated.
func (d *Decoder) Next() (Field, bool, error) {
	buf := d.view.Bytes()
	if d.pos >= len(buf) {
		return Field{}, false, nil
	}

	tag, n, err := ReadVarint(buf[d.pos:])
	if err != nil {
		return Field{}, false, err
	}
	d.pos += n

	id := uint32(tag >> 3)
	wt := Type(tag & 0x7)
	if id == 0 {
		return Field{}, false, fmt.Errorf("wire: %w: field id 0", ErrMalformedVarint)
	}

	switch wt {
	case TypeVarint:
		val, n, err := ReadVarint(buf[d.pos:])
		if err != nil {
			return Field{}, false, err
		}
		d.pos += n
		return Field{ID: id, Type: wt, Varint: val}, true, nil

	case TypeFixed64:
		if d.pos+8 > len(buf) {
			return Field{}, false, ErrTruncated
		}
		val := binary.LittleEndian.Uint64(buf[d.pos : d.pos+8])
		d.pos += 8
		return Field{ID: id, Type: wt, Varint: val}, true, nil

	case TypeFixed32:
		if d.pos+4 > len(buf) {
			return Field{}, false, ErrTruncated
		}
		val := uint64(binary.LittleEndian.Uint32(buf[d.pos : d.pos+4]))
		d.pos += 4
		return Field{ID: id, Type: wt, Varint: val}, true, nil

	case TypeBytes:
		size, n, err := ReadVarint(buf[d.pos:])
		if err != nil {
			return Field{}, false, err
		}
		d.pos += n
		if d.pos+int(size) > len(buf) {
			return Field{}, false, ErrTruncated
		}
		sub, err := d.view.Slice(d.pos, int(size))
		if err != nil {
			return Field{}, false, err
		}
		d.pos += int(size)
		return Field{ID: id, Type: wt, Payload: sub}, true, nil

	default:
		return Field{}, false, fmt.Errorf("wire: unsupported wire type %d", wt)
	}
}

package tokenizer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/c360/traceproc/blob"
	trcerrors "github.com/c360/traceproc/errors"
	"github.com/c360/traceproc/wire"
	"github.com/klauspost/compress/zlib"
)

// Callback receives one fully-framed packet body, as a zero-copy View
// into whichever buffer it was decoded from (the original input for an
// uncompressed packet, or a freshly-inflated buffer for one that
// arrived inside a compressed_packets bundle).
type Callback func(pkt blob.View) error

// Tokenizer consumes an append-only stream of chunks via repeated
// Parse calls and reports one packet body at a time to onPacket. It is
// not safe for concurrent use; the ingestion core is single-threaded.
type Tokenizer struct {
	pending  []byte
	onPacket Callback
}

// New returns a Tokenizer that reports each framed packet body to cb.
func New(cb Callback) *Tokenizer {
	return &Tokenizer{onPacket: cb}
}

// Parse feeds additional bytes. It may be called repeatedly with
// arbitrarily sized chunks; a packet that straddles two calls is
// carried over internally and completed once enough bytes arrive.
func (t *Tokenizer) Parse(chunk []byte) error {
	buf := chunk
	if len(t.pending) > 0 {
		buf = make([]byte, 0, len(t.pending)+len(chunk))
		buf = append(buf, t.pending...)
		buf = append(buf, chunk...)
	}
	t.pending = nil

	v := blob.Whole(blob.New(buf))
	defer v.Release()

	d := wire.NewDecoder(v)
	for {
		start := d.Consumed()
		f, ok, err := d.Next()
		if err == wire.ErrTruncated {
			t.stash(buf[start:])
			return nil
		}
		if err != nil {
			return trcerrors.WrapCorrupt(err, "tokenizer", "Parse")
		}
		if !ok {
			return nil
		}
		if err := t.dispatchField(f); err != nil {
			return err
		}
	}
}

// NotifyEndOfFile flushes any residual carry buffer. A non-empty carry
// at end of stream means the last packet was truncated: that is fatal.
func (t *Tokenizer) NotifyEndOfFile() error {
	if len(t.pending) == 0 {
		return nil
	}
	n := len(t.pending)
	t.pending = nil
	return trcerrors.WrapCorrupt(
		fmt.Errorf("%w: %d bytes unconsumed", trcerrors.ErrTruncatedPacket, n),
		"tokenizer", "NotifyEndOfFile")
}

func (t *Tokenizer) stash(tail []byte) {
	if len(tail) == 0 {
		t.pending = nil
		return
	}
	t.pending = append([]byte(nil), tail...)
}

// dispatchField handles one outer-level field, which must be the
// packet-framing field id carrying a length-delimited TracePacket body.
func (t *Tokenizer) dispatchField(f wire.Field) error {
	if f.ID != wire.TraceFieldPacket || f.Type != wire.TypeBytes {
		return trcerrors.WrapCorrupt(
			fmt.Errorf("unexpected outer field (id=%d type=%d)", f.ID, f.Type),
			"tokenizer", "dispatchField")
	}

	compressed, ok, err := hasCompressedPackets(f.Payload)
	if err != nil {
		return trcerrors.WrapCorrupt(err, "tokenizer", "dispatchField")
	}
	if ok {
		return t.inflateAndTokenize(compressed)
	}
	return t.onPacket(f.Payload)
}

// hasCompressedPackets does a partial scan of a TracePacket body,
// looking only for the compressed_packets field, without decoding
// anything else the reader would later need.
func hasCompressedPackets(v blob.View) (blob.View, bool, error) {
	d := wire.NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return blob.View{}, false, err
		}
		if !ok {
			return blob.View{}, false, nil
		}
		if f.ID == wire.FieldCompressedPackets && f.Type == wire.TypeBytes {
			return f.Payload, true, nil
		}
	}
}

// inflateAndTokenize decompresses a compressed_packets bundle and
// re-tokenizes it as a self-contained stream. Because inflation always
// yields the complete bundle at once, a truncated inner frame is a
// genuine corruption error, not a signal to wait for more bytes.
func (t *Tokenizer) inflateAndTokenize(compressed blob.View) error {
	zr, err := zlib.NewReader(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		return trcerrors.WrapCorrupt(fmt.Errorf("%w: %v", trcerrors.ErrDecompressionFailed, err), "tokenizer", "inflateAndTokenize")
	}
	defer zr.Close()

	inflated, err := io.ReadAll(zr)
	if err != nil {
		return trcerrors.WrapCorrupt(fmt.Errorf("%w: %v", trcerrors.ErrDecompressionFailed, err), "tokenizer", "inflateAndTokenize")
	}
	return t.tokenizeComplete(inflated)
}

// tokenizeComplete tokenizes a buffer known to hold a whole number of
// packets with nothing left over, such as an inflated compressed
// bundle. A trailing partial field is treated as corruption.
func (t *Tokenizer) tokenizeComplete(buf []byte) error {
	v := blob.Whole(blob.New(buf))
	defer v.Release()

	d := wire.NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return trcerrors.WrapCorrupt(fmt.Errorf("truncated packet inside compressed_packets: %w", err), "tokenizer", "tokenizeComplete")
		}
		if !ok {
			return nil
		}
		if err := t.dispatchField(f); err != nil {
			return err
		}
	}
}

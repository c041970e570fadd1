package reader_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/c360/traceproc/clock"
	"github.com/c360/traceproc/reader"
	"github.com/c360/traceproc/sorter"
	"github.com/c360/traceproc/stats"
	"github.com/c360/traceproc/wire"
)

func varintField(buf []byte, id uint32, val uint64) []byte {
	buf = wire.AppendVarint(buf, uint64(id)<<3|uint64(wire.TypeVarint))
	return wire.AppendVarint(buf, val)
}

func bytesField(buf []byte, id uint32, payload []byte) []byte {
	buf = wire.AppendVarint(buf, uint64(id)<<3|uint64(wire.TypeBytes))
	buf = wire.AppendVarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func frame(body []byte) []byte {
	out := wire.AppendVarint(nil, uint64(wire.TraceFieldPacket)<<3|uint64(wire.TypeBytes))
	out = wire.AppendVarint(out, uint64(len(body)))
	return append(out, body...)
}

func TestFullSortOrdersAcrossSequences(t *testing.T) {
	var got []int64
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error {
		got = append(got, e.TraceTimeNs)
		return nil
	}, nil)

	p1 := varintField(nil, wire.FieldTimestamp, 300)
	p2 := varintField(nil, wire.FieldTimestamp, 100)
	p3 := varintField(nil, wire.FieldTimestamp, 200)

	stream := append(append(frame(p1), frame(p2)...), frame(p3)...)
	if err := r.Parse(stream); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	if len(got) != 3 || got[0] != 100 || got[1] != 200 || got[2] != 300 {
		t.Fatalf("expected [100 200 300], got %v", got)
	}
}

func TestNeedsIncrementalStateDropsPacketWhenInvalid(t *testing.T) {
	s := stats.New()
	var delivered int
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error {
		delivered++
		return nil
	}, nil)

	pkt := varintField(nil, wire.FieldTrustedPacketSequenceID, 5)
	pkt = varintField(pkt, wire.FieldSequenceFlags, uint64(wire.SeqNeedsIncrementalState))
	pkt = varintField(pkt, wire.FieldTimestamp, 10)

	if err := r.Parse(frame(pkt)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	if delivered != 0 {
		t.Fatalf("expected the packet to be skipped, got %d deliveries", delivered)
	}
	if got := s.Get(stats.TokenizerSkippedPackets); got != 1 {
		t.Fatalf("expected tokenizer_skipped_packets=1, got %d", got)
	}
}

func TestIncrementalStateClearedAllowsSubsequentInterning(t *testing.T) {
	s := stats.New()
	var delivered int
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error {
		delivered++
		return nil
	}, nil)

	// First packet clears state and interns one entry.
	interned := varintField(nil, wire.FieldInternID, 1)
	internedData := bytesField(nil, 50, interned)

	p1 := varintField(nil, wire.FieldTrustedPacketSequenceID, 9)
	p1 = varintField(p1, wire.FieldSequenceFlags, uint64(wire.SeqIncrementalStateCleared))
	p1 = bytesField(p1, wire.FieldInternedData, internedData)
	p1 = varintField(p1, wire.FieldTimestamp, 1)

	// Second packet needs incremental state; should now succeed.
	p2 := varintField(nil, wire.FieldTrustedPacketSequenceID, 9)
	p2 = varintField(p2, wire.FieldSequenceFlags, uint64(wire.SeqNeedsIncrementalState))
	p2 = varintField(p2, wire.FieldTimestamp, 2)

	stream := append(frame(p1), frame(p2)...)
	if err := r.Parse(stream); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	if delivered != 2 {
		t.Fatalf("expected both packets delivered, got %d", delivered)
	}
	if got := s.Get(stats.InternedDataTokenizerErrors); got != 0 {
		t.Fatalf("expected no interning errors, got %d", got)
	}
	if got := s.Get(stats.TokenizerSkippedPackets); got != 0 {
		t.Fatalf("expected no skipped packets, got %d", got)
	}
}

func TestInternedDataWithoutSequenceIDIsCountedAsError(t *testing.T) {
	s := stats.New()
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error { return nil }, nil)

	interned := varintField(nil, wire.FieldInternID, 1)
	internedData := bytesField(nil, 50, interned)
	p := bytesField(nil, wire.FieldInternedData, internedData)

	if err := r.Parse(frame(p)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}
	if got := s.Get(stats.InternedDataTokenizerErrors); got != 1 {
		t.Fatalf("expected interned_data_tokenizer_errors=1, got %d", got)
	}
}

func TestClockSnapshotConvertsSubsequentTimestamps(t *testing.T) {
	var got []int64
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error {
		got = append(got, e.TraceTimeNs)
		return nil
	}, nil)

	entry := func(id uint32, value uint64) []byte {
		buf := varintField(nil, wire.FieldClockID, uint64(id))
		return varintField(buf, wire.FieldClockTimestamp, value)
	}
	snapshot := bytesField(nil, wire.FieldClockSnapshotClocks, entry(clock.Boottime, 5000))
	snapshot = bytesField(snapshot, wire.FieldClockSnapshotClocks, entry(clock.Monotonic, 1000))
	snapshot = varintField(snapshot, wire.FieldClockSnapshotPrimaryTraceClock, uint64(clock.Boottime))

	p1 := bytesField(nil, wire.FieldClockSnapshot, snapshot)

	p2 := varintField(nil, wire.FieldTimestampClockID, uint64(clock.Monotonic))
	p2 = varintField(p2, wire.FieldTimestamp, 1500)

	stream := append(frame(p1), frame(p2)...)
	if err := r.Parse(stream); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	// The clock snapshot packet itself is never delivered.
	if len(got) != 1 {
		t.Fatalf("expected 1 packet delivered, got %d", len(got))
	}
	if got[0] != 5500 {
		t.Fatalf("expected second packet resolved to 5500, got %d", got[0])
	}
}

func TestFrameTimelineZeroTimestampWorkaroundCounted(t *testing.T) {
	s := stats.New()
	var delivered int
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error {
		delivered++
		return nil
	}, nil)

	p := varintField(nil, wire.FieldFrameTimelineEvent, 0)
	p = varintField(p, wire.FieldTimestamp, 0)

	if err := r.Parse(frame(p)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected the zero-timestamp frame timeline packet to be dropped, got %d deliveries", delivered)
	}
	if got := s.Get(stats.FrameTimelineEventParserErrors); got != 1 {
		t.Fatalf("expected frame_timeline_event_parser_errors=1, got %d", got)
	}
}

func TestNeedsIncrementalStateWithNoSequenceIDIsFatal(t *testing.T) {
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error { return nil }, nil)

	p := varintField(nil, wire.FieldSequenceFlags, uint64(wire.SeqNeedsIncrementalState))
	p = varintField(p, wire.FieldTimestamp, 10)

	if err := r.Parse(frame(p)); err == nil {
		t.Fatal("expected needs_incremental_state with no trusted_packet_sequence_id to be a protocol violation")
	}
}

func TestUnresolvableClockDropsPacketWithoutDelivering(t *testing.T) {
	s := stats.New()
	var delivered int
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error {
		delivered++
		return nil
	}, nil)

	// An explicit, non-chrome, non-zero clock id (not the default
	// trace-time clock) with no snapshot ever registered for it cannot
	// be converted: the packet is dropped outright rather than
	// forwarded with a raw or garbage timestamp.
	p := varintField(nil, wire.FieldTimestampClockID, uint64(clock.Realtime))
	p = varintField(p, wire.FieldTimestamp, 42)

	if err := r.Parse(frame(p)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	if delivered != 0 {
		t.Fatalf("expected the packet to be dropped, got %d deliveries", delivered)
	}
	if got := s.Get(stats.ClockSyncFailure); got != 1 {
		t.Fatalf("expected clock_sync_failure=1, got %d", got)
	}
}

func TestSequenceScopedClockWithNoSequenceIDIsFatal(t *testing.T) {
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error { return nil }, nil)

	// timestamp_clock_id=64 is sequence-scoped but the packet carries no
	// trusted_packet_sequence_id at all.
	p := varintField(nil, wire.FieldTimestampClockID, 64)
	p = varintField(p, wire.FieldTimestamp, 10)

	if err := r.Parse(frame(p)); err == nil {
		t.Fatal("expected a sequence-scoped clock id with no sequence id to be a protocol violation")
	}
}

func TestPreviousPacketDroppedWithNoSequenceIDIsCountedAsError(t *testing.T) {
	s := stats.New()
	r := reader.New(reader.Options{ForceFullSort: true}, s, func(e sorter.Entry) error { return nil }, nil)

	p := varintField(nil, wire.FieldPreviousPacketDropped, 1)
	p = varintField(p, wire.FieldTimestamp, 10)

	if err := r.Parse(frame(p)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}
	if got := s.Get(stats.InternedDataTokenizerErrors); got != 1 {
		t.Fatalf("expected interned_data_tokenizer_errors=1, got %d", got)
	}
}

func TestWriteIntoFileWithNoFlushPeriodLogsOnceAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error { return nil }, logger)

	traceConfig := varintField(nil, wire.FieldTraceConfigWriteIntoFile, 1)
	p := bytesField(nil, wire.FieldTraceConfig, traceConfig)

	stream := append(frame(p), frame(p)...)
	if err := r.Parse(stream); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}

	out := buf.String()
	if got := strings.Count(out, "lifecycle warning"); got != 1 {
		t.Fatalf("expected exactly one lifecycle warning line, got %d in:\n%s", got, out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Fatalf("expected the lifecycle warning at WARN level, got:\n%s", out)
	}
}

func TestModuleDispatchReachesExtensionFields(t *testing.T) {
	r := reader.New(reader.Options{ForceFullSort: true}, nil, func(e sorter.Entry) error { return nil }, nil)

	var seen string
	r.RegisterModule(300, func(pkt *wire.PacketDecoder, f wire.Field) error {
		seen = string(f.Payload.Bytes())
		return nil
	})

	p := bytesField(nil, 300, []byte("payload"))
	if err := r.Parse(frame(p)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.NotifyEndOfFile(); err != nil {
		t.Fatalf("NotifyEndOfFile: %v", err)
	}
	if seen != "payload" {
		t.Fatalf("expected module to observe field 300's payload, got %q", seen)
	}
}

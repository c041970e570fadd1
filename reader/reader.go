package reader

import (
	"fmt"
	"log/slog"

	"github.com/c360/traceproc/blob"
	"github.com/c360/traceproc/clock"
	trcerrors "github.com/c360/traceproc/errors"
	"github.com/c360/traceproc/module"
	"github.com/c360/traceproc/sequence"
	"github.com/c360/traceproc/sorter"
	"github.com/c360/traceproc/stats"
	"github.com/c360/traceproc/tokenizer"
	"github.com/c360/traceproc/wire"
)

// Options configures a Reader's sort behavior. The zero value is a
// reasonable default: windowed sorting with a generous window.
type Options struct {
	// ForceFullSort disables windowed sorting entirely, buffering the
	// whole trace and releasing it sorted at end of file. Matches the
	// "force_full_sort" sorting mode override. The deprecated
	// "force_flush_period_windowed_sort" mode is not distinguished from
	// the default anywhere in this package; callers should map it to
	// ForceFullSort: false, SortWindowNs: 0 like any other default.
	ForceFullSort bool

	// SortWindowNs bounds how far out of order two packets on
	// different sequences may arrive before the sorter gives up
	// waiting and releases the earlier one anyway. Ignored when
	// ForceFullSort is set. Zero selects a built-in default.
	SortWindowNs int64
}

const defaultSortWindowNs = 180_000_000 // 180ms, generous enough for typical flush cadences

// Reader is the trace-ingestion orchestrator. It is not safe for
// concurrent use.
type Reader struct {
	tok     *tokenizer.Tokenizer
	seqs    *sequence.Registry
	clocks  *clock.Tracker
	sort    *sorter.Sorter
	modules *module.Registry
	stats   *stats.Counters
	logger  *slog.Logger

	extensions             []blob.View
	latestTimestamp        int64
	loggedLifecycleWarning bool
}

// New returns a Reader that emits sorted packets to onPacket, in
// non-decreasing trace time. logger receives the ingestion diagnostics
// of §10.2: fatal errors at Error, lifecycle warnings at Warn, and one
// Info summary line when NotifyEndOfFile returns. A nil logger falls
// back to slog.Default().
func New(opts Options, s *stats.Counters, onPacket sorter.Release, logger *slog.Logger) *Reader {
	if s == nil {
		s = stats.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	mode := sorter.ModeWindowed
	window := opts.SortWindowNs
	if opts.ForceFullSort {
		mode = sorter.ModeFullSort
	} else if window <= 0 {
		window = defaultSortWindowNs
	}

	r := &Reader{
		seqs:    sequence.NewRegistry(),
		clocks:  clock.NewTracker(s),
		modules: module.NewRegistry(),
		stats:   s,
		logger:  logger,
	}
	r.sort = sorter.New(mode, window, onPacket)
	r.tok = tokenizer.New(r.handlePacket)
	return r
}

// RegisterModule adds h as an interested party for fieldID, per §6's
// module registration contract.
func (r *Reader) RegisterModule(fieldID uint32, h module.Handler) {
	r.modules.Register(fieldID, h)
}

// Stats returns the shared counters this Reader (and everything it
// drives) reports diagnostics through.
func (r *Reader) Stats() *stats.Counters { return r.stats }

// Pending reports how many entries the windowed sorter is currently
// holding, for the daemon's traceproc_sorter_pending_entries gauge.
func (r *Reader) Pending() int { return r.sort.Pending() }

// LiveGenerations counts sequences whose current Generation has at
// least one live reference, for traceproc_sequence_generations_live.
func (r *Reader) LiveGenerations() int {
	var live int
	r.seqs.ForEach(func(s *sequence.State) {
		if s.CurrentGeneration().Refs() > 0 {
			live++
		}
	})
	return live
}

// Parse feeds one chunk of the input stream. Chunks may be arbitrarily
// sized; a packet split across two calls is reassembled transparently.
func (r *Reader) Parse(chunk []byte) error {
	return r.tok.Parse(chunk)
}

// NotifyEndOfFile signals that no further chunks are coming. It
// surfaces a truncated final packet as an error, then drains the
// sorter's buffer regardless of sort mode. A single Info line reports
// the final stats.Snapshot() before returning, whether or not draining
// succeeded.
func (r *Reader) NotifyEndOfFile() (err error) {
	defer func() {
		r.logger.Info("trace ingestion complete", "stats", r.stats.Snapshot(), "error", err)
	}()
	if err = r.tok.NotifyEndOfFile(); err != nil {
		return err
	}
	return r.sort.NotifyEndOfFile()
}

// handlePacket is the tokenizer callback: one fully-framed TracePacket
// body, still as a zero-copy view into whatever buffer it was decoded
// from. It follows the twelve-step procedure of §4.6 in order.
func (r *Reader) handlePacket(pkt blob.View) (err error) {
	// A fatal error is worth an operator's attention at the point it's
	// discovered, with enough context (offset, sequence id) to find the
	// packet again. Lifecycle warnings are logged where they're detected
	// below instead, since they carry a specific reason worth a distinct
	// message; soft loss is only counted in stats, never logged.
	var seqID uint32
	defer func() {
		if err == nil {
			return
		}
		if kind := trcerrors.Classify(err); kind == trcerrors.KindCorrupt || kind == trcerrors.KindProtocolViolation {
			r.logger.Error("fatal ingestion error", "kind", kind.String(), "sequence_id", seqID, "offset", pkt.Offset(), "error", err)
		}
	}()

	// Step 1: decode; trailing bytes after every known field means the
	// wire decoder didn't consume everything, i.e. the trace is corrupt.
	pd, err := wire.DecodePacket(pkt)
	if err != nil {
		return trcerrors.WrapCorrupt(err, "reader", "handlePacket")
	}
	if pd.BytesLeft() != 0 {
		return trcerrors.WrapCorrupt(
			fmt.Errorf("%w: %d bytes", trcerrors.ErrTrailingBytes, pd.BytesLeft()),
			"reader", "handlePacket")
	}

	// Step 2: sequence id 0 is reserved and means "not provided" (§3):
	// a packet naming it explicitly is treated the same as one that
	// omits trusted_packet_sequence_id.
	var seq *sequence.State
	if pd.HasTrustedPacketSequenceID() && pd.TrustedPacketSequenceID() != 0 {
		seqID = pd.TrustedPacketSequenceID()
		seq = r.seqs.Get(seqID)
	}

	// Step 3.
	flags := pd.SequenceFlags()
	cleared := pd.IncrementalStateCleared() || flags&wire.SeqIncrementalStateCleared != 0
	switch {
	case cleared && seq != nil:
		seq.OnIncrementalStateCleared()
		r.clocks.ResetSequenceScopedClocks(seqID)
	case cleared && seq == nil:
		r.stats.Increment(stats.InternedDataTokenizerErrors)
	case pd.PreviousPacketDropped() && seq != nil:
		seq.OnPacketLoss()
	case pd.PreviousPacketDropped() && seq == nil:
		r.stats.Increment(stats.InternedDataTokenizerErrors)
	}

	// Step 4: no validity precondition — defaults are recorded whether
	// or not the sequence has been cleared yet.
	if pd.HasTracePacketDefaults() {
		if seq == nil {
			r.stats.Increment(stats.InternedDataTokenizerErrors)
		} else {
			def, err := wire.DecodeTracePacketDefaults(pd.TracePacketDefaults())
			if err != nil {
				return trcerrors.WrapCorrupt(err, "reader", "trace_packet_defaults")
			}
			if def.HasTimestampClockID {
				seq.UpdateTracePacketDefaults(def.TimestampClockID)
			}
		}
	}

	// Step 5.
	if pd.HasInternedData() {
		switch {
		case seq == nil:
			r.stats.Increment(stats.InternedDataTokenizerErrors)
		case seq.IsValid():
			if err := r.internAll(seq, pd.InternedData()); err != nil {
				return trcerrors.WrapCorrupt(err, "reader", "interned_data")
			}
		default:
			r.stats.Increment(stats.TokenizerSkippedPackets)
		}
	}

	// Step 6: clock snapshots are routed to the clock tracker and never
	// forwarded downstream. A sequence-scoped clock id with no sequence
	// id is a protocol violation, per §3.
	if pd.HasClockSnapshot() {
		snap, err := wire.DecodeClockSnapshot(pd.ClockSnapshot())
		if err != nil {
			return trcerrors.WrapCorrupt(err, "reader", "clock_snapshot")
		}
		for _, entry := range snap.Clocks {
			if seqID == 0 && clock.IsSequenceScoped(uint32(entry.ID)) {
				return trcerrors.WrapProtocolViolation(trcerrors.ErrSequenceScopedClockNoSequence, "reader", "clock_snapshot")
			}
		}
		var declaredTs int64
		if pd.HasTimestamp() {
			declaredTs = pd.Timestamp()
		}
		r.clocks.AddSnapshot(seqID, snap.Clocks, declaredTs)
		if snap.PrimaryTraceClock != 0 {
			r.clocks.SetTraceTimeClock(clock.GlobalID(seqID, uint32(snap.PrimaryTraceClock)))
		}
		return nil
	}

	// A sequence-scoped timestamp_clock_id with no sequence id is a
	// protocol violation regardless of whether the packet has a
	// timestamp at all; check it before Step 10 attempts a conversion.
	if pd.HasTimestampClockID() && seqID == 0 && clock.IsSequenceScoped(pd.TimestampClockID()) {
		return trcerrors.WrapProtocolViolation(trcerrors.ErrSequenceScopedClockNoSequence, "reader", "handlePacket")
	}

	// Step 7: a service event's own timestamp defines a barrier and is
	// used raw, never converted through the clock tracker (the barrier
	// bounds the window a still-unresolved packet's timestamp falls
	// into, not a value compared against already-resolved trace time).
	// It must be present. A service_event packet carries nothing else
	// of interest to the core, so it never reaches the sorter.
	if pd.HasServiceEvent() {
		if !pd.HasTimestamp() {
			return trcerrors.WrapCorrupt(fmt.Errorf("service_event packet has no timestamp"), "reader", "service_event")
		}
		ev, err := wire.DecodeServiceEvent(pd.ServiceEvent())
		if err != nil {
			return trcerrors.WrapCorrupt(err, "reader", "service_event")
		}
		barrierNs := pd.Timestamp()
		switch {
		case ev.AllDataSourcesFlushed:
			if err := r.sort.NotifyFlushEvent(barrierNs); err != nil {
				return err
			}
		case ev.ReadTracingBuffersComplete:
			if err := r.sort.NotifyReadBufferEvent(barrierNs); err != nil {
				return err
			}
		}
		return nil
	}

	// Step 8: extension descriptors register dynamic fields with the
	// (external) descriptor pool and are never forwarded downstream.
	if pd.HasExtensionDescriptor() {
		set, err := wire.ExtensionSet(pd.ExtensionDescriptor())
		if err != nil {
			return trcerrors.WrapCorrupt(err, "reader", "extension_descriptor")
		}
		if !set.IsZero() {
			r.extensions = append(r.extensions, set.Retain())
		}
		return nil
	}

	// trace_config is metadata-only and never forwarded downstream. A
	// write-into-file trace with no flush_period_ms may never see its
	// buffered data reach disk; that's worth an operator's attention
	// but never fatal, so it's logged at warn severity at most once per
	// trace rather than once per packet.
	if pd.HasTraceConfig() {
		tc, err := wire.DecodeTraceConfig(pd.TraceConfig())
		if err != nil {
			return trcerrors.WrapCorrupt(err, "reader", "trace_config")
		}
		if tc.WriteIntoFile && tc.FlushPeriodMs == 0 && !r.loggedLifecycleWarning {
			r.loggedLifecycleWarning = true
			lw := trcerrors.WrapLifecycleWarning(trcerrors.ErrWriteIntoFileNoFlushPeriod, "reader", "trace_config")
			r.logger.Warn("lifecycle warning", "error", lw)
		}
		return nil
	}

	// Step 9: needs_incremental_state with no sequence id is a protocol
	// violation; the same flag on an invalid sequence drops the packet
	// but is not otherwise an error. This gate must run before Step 10
	// resolves a timestamp: resolveTimestamp mutates latestTimestamp
	// and the clock tracker's conversion cache, and a packet dropped
	// here must never have contributed to either.
	if flags&wire.SeqNeedsIncrementalState != 0 {
		if seq == nil {
			return trcerrors.WrapProtocolViolation(trcerrors.ErrNeedsIncrementalStateNoSequence, "reader", "handlePacket")
		}
		if !seq.IsValid() {
			r.stats.Increment(stats.TokenizerSkippedPackets)
			return nil
		}
	}

	// Known producer bug: some frame timeline events carry a zero
	// timestamp instead of omitting the field. This is soft data loss
	// (§7): the packet is dropped outright, before it can reach
	// resolveTimestamp, the module dispatch table, or the sorter.
	if pd.HasFrameTimelineEvent() {
		var raw uint64
		if pd.HasTimestamp() {
			raw = uint64(pd.Timestamp())
		}
		if raw == 0 {
			r.stats.Increment(stats.FrameTimelineEventParserErrors)
			return nil
		}
	}

	// Step 10.
	traceTimeNs := r.resolveTimestamp(seq, seqID, pd)

	// Step 10 (continued): a conversion failure on a non-workaround
	// clock drops the packet rather than forwarding a bogus timestamp.
	if traceTimeNs == dropSentinel {
		return nil
	}

	// Step 11.
	if err := r.modules.Dispatch(pd); err != nil {
		return err
	}

	// Step 12.
	var keepalive sorter.Keepalive
	if seq != nil {
		keepalive = seq.CurrentGeneration().Retain()
	}
	return r.sort.Push(sorter.Entry{
		TraceTimeNs: traceTimeNs,
		Payload:     pkt.Retain(),
		Keepalive:   keepalive,
	})
}

// dropSentinel is returned by resolveTimestamp to signal "drop this
// packet" without overloading a real timestamp value (which may
// legitimately be any int64, including zero or negative).
const dropSentinel = int64(1<<63 - 1)

// resolveTimestamp implements §4.6 step 10. clockID 0 (no explicit id
// and no sequence defaults) and MONOTONIC on a chrome-flavored packet
// both get a best-effort conversion that falls back to the raw value
// on failure rather than dropping the packet; every other clock drops
// the packet outright on a failed conversion.
func (r *Reader) resolveTimestamp(seq *sequence.State, seqID uint32, pd *wire.PacketDecoder) int64 {
	if !pd.HasTimestamp() {
		pinned := max64(r.latestTimestamp, mustMax(r.sort.MaxTimestamp()))
		r.latestTimestamp = pinned
		return pinned
	}
	raw := uint64(pd.Timestamp())

	clockID := uint32(0)
	if pd.HasTimestampClockID() {
		clockID = pd.TimestampClockID()
	} else if seq != nil {
		if id, ok := seq.CurrentGeneration().DefaultsTimestampClockID(); ok {
			clockID = id
		}
	}

	chromeBestEffort := clockID == 0 || (clockID == clock.Monotonic && (pd.HasChromeEvents() || pd.HasChromeMetadata()))
	if chromeBestEffort {
		effective := clockID
		if effective == 0 {
			effective = clock.Monotonic
		}
		ns, err := r.clocks.ToTraceTime(seqID, effective, raw)
		if err != nil {
			ns = int64(raw)
		}
		r.latestTimestamp = max64(r.latestTimestamp, ns)
		return ns
	}

	ns, err := r.clocks.ToTraceTime(seqID, clockID, raw)
	if err != nil {
		return dropSentinel
	}
	r.latestTimestamp = max64(r.latestTimestamp, ns)
	return ns
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func mustMax(v int64, ok bool) int64 {
	if !ok {
		return 0
	}
	return v
}

// internAll walks an interned_data submessage, whose fields are each
// keyed by an interning category (event names, categories, and so on)
// and whose payload is itself a submessage carrying its interning id
// in field 1 by convention.
func (r *Reader) internAll(seq *sequence.State, v blob.View) error {
	d := wire.NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if f.Type != wire.TypeBytes {
			continue
		}
		id, found, err := wire.ReadInternID(f.Payload)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		key := sequence.InternKey{FieldID: f.ID, InternID: id}
		if err := seq.InternMessage(key, f.Payload); err != nil {
			r.stats.Increment(stats.TokenizerSkippedPackets)
		}
	}
}

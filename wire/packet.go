package wire

import "github.com/c360/traceproc/blob"

// PacketDecoder is a single, non-allocating pass over one TracePacket's
// fields. It materializes exactly the handful of well-known fields the
// reader (§4.6) inspects directly, and additionally retains the raw
// field list so the reader's field-id → module dispatch table (§4.6
// step 11) can look up arbitrary, non-well-known field ids without a
// second parse.
type PacketDecoder struct {
	fields []Field

	hasTimestamp bool
	timestamp    uint64

	hasSeqID bool
	seqID    uint32

	sequenceFlags uint32

	hasInternedData bool
	internedData    blob.View

	hasDefaults bool
	defaults    blob.View

	hasClockSnapshot bool
	clockSnapshot    blob.View

	hasServiceEvent bool
	serviceEvent    blob.View

	hasExtensionDescriptor bool
	extensionDescriptor    blob.View

	hasCompressedPackets bool
	compressedPackets    blob.View

	hasTraceConfig bool
	traceConfig    blob.View

	hasTimestampClockID bool
	timestampClockID    uint32

	incrementalStateCleared bool
	previousPacketDropped   bool
	hasFrameTimelineEvent   bool
	hasChromeEvents         bool
	hasChromeMetadata       bool

	bytesLeft int
}

// DecodePacket parses every field of v once, in order.
func DecodePacket(v blob.View) (*PacketDecoder, error) {
	d := NewDecoder(v)
	pd := &PacketDecoder{}
	for {
		f, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		pd.fields = append(pd.fields, f)

		switch f.ID {
		case FieldTimestamp:
			pd.hasTimestamp = true
			pd.timestamp = f.Varint
		case FieldTrustedPacketSequenceID:
			pd.hasSeqID = true
			pd.seqID = uint32(f.Varint)
		case FieldSequenceFlags:
			pd.sequenceFlags = uint32(f.Varint)
		case FieldInternedData:
			pd.hasInternedData = true
			pd.internedData = f.Payload
		case FieldTracePacketDefaults:
			pd.hasDefaults = true
			pd.defaults = f.Payload
		case FieldClockSnapshot:
			pd.hasClockSnapshot = true
			pd.clockSnapshot = f.Payload
		case FieldServiceEvent:
			pd.hasServiceEvent = true
			pd.serviceEvent = f.Payload
		case FieldExtensionDescriptor:
			pd.hasExtensionDescriptor = true
			pd.extensionDescriptor = f.Payload
		case FieldCompressedPackets:
			pd.hasCompressedPackets = true
			pd.compressedPackets = f.Payload
		case FieldTraceConfig:
			pd.hasTraceConfig = true
			pd.traceConfig = f.Payload
		case FieldTimestampClockID:
			pd.hasTimestampClockID = true
			pd.timestampClockID = uint32(f.Varint)
		case FieldIncrementalStateCleared:
			pd.incrementalStateCleared = f.AsBool()
		case FieldPreviousPacketDropped:
			pd.previousPacketDropped = f.AsBool()
		case FieldFrameTimelineEvent:
			pd.hasFrameTimelineEvent = true
		case FieldChromeEvents:
			pd.hasChromeEvents = true
		case FieldChromeMetadata:
			pd.hasChromeMetadata = true
		}
	}
	pd.bytesLeft = d.BytesLeft()
	return pd, nil
}

func (pd *PacketDecoder) HasTimestamp() bool     { return pd.hasTimestamp }
func (pd *PacketDecoder) Timestamp() int64       { return int64(pd.timestamp) }
func (pd *PacketDecoder) HasTrustedPacketSequenceID() bool { return pd.hasSeqID }
func (pd *PacketDecoder) TrustedPacketSequenceID() uint32  { return pd.seqID }
func (pd *PacketDecoder) SequenceFlags() uint32  { return pd.sequenceFlags }
func (pd *PacketDecoder) HasInternedData() bool  { return pd.hasInternedData }
func (pd *PacketDecoder) InternedData() blob.View { return pd.internedData }
func (pd *PacketDecoder) HasTracePacketDefaults() bool  { return pd.hasDefaults }
func (pd *PacketDecoder) TracePacketDefaults() blob.View { return pd.defaults }
func (pd *PacketDecoder) HasClockSnapshot() bool  { return pd.hasClockSnapshot }
func (pd *PacketDecoder) ClockSnapshot() blob.View { return pd.clockSnapshot }
func (pd *PacketDecoder) HasServiceEvent() bool   { return pd.hasServiceEvent }
func (pd *PacketDecoder) ServiceEvent() blob.View { return pd.serviceEvent }
func (pd *PacketDecoder) HasExtensionDescriptor() bool  { return pd.hasExtensionDescriptor }
func (pd *PacketDecoder) ExtensionDescriptor() blob.View { return pd.extensionDescriptor }
func (pd *PacketDecoder) HasCompressedPackets() bool  { return pd.hasCompressedPackets }
func (pd *PacketDecoder) CompressedPackets() blob.View { return pd.compressedPackets }
func (pd *PacketDecoder) HasTraceConfig() bool   { return pd.hasTraceConfig }
func (pd *PacketDecoder) TraceConfig() blob.View { return pd.traceConfig }
func (pd *PacketDecoder) HasTimestampClockID() bool { return pd.hasTimestampClockID }
func (pd *PacketDecoder) TimestampClockID() uint32  { return pd.timestampClockID }
func (pd *PacketDecoder) IncrementalStateCleared() bool { return pd.incrementalStateCleared }
func (pd *PacketDecoder) PreviousPacketDropped() bool   { return pd.previousPacketDropped }
func (pd *PacketDecoder) HasFrameTimelineEvent() bool   { return pd.hasFrameTimelineEvent }
func (pd *PacketDecoder) HasChromeEvents() bool         { return pd.hasChromeEvents }
func (pd *PacketDecoder) HasChromeMetadata() bool       { return pd.hasChromeMetadata }

// BytesLeft reports unparsed trailing bytes. Non-zero means the outer
// view contained more than a well-formed sequence of fields — the
// trace is probably corrupt.
func (pd *PacketDecoder) BytesLeft() int { return pd.bytesLeft }

// Get returns the first occurrence of fieldID, for the field-id →
// module dispatch table. Well-known fields are just as reachable
// through this path as domain-specific ones.
func (pd *PacketDecoder) Get(fieldID uint32) (Field, bool) {
	for _, f := range pd.fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return Field{}, false
}

// Fields returns every field seen, in wire order. Used by module
// dispatch to walk field ids the core doesn't interpret itself.
func (pd *PacketDecoder) Fields() []Field { return pd.fields }

// ClockEntry is one (clock-id, absolute-value, unit-multiplier,
// is-incremental) tuple from a ClockSnapshot message.
type ClockEntry struct {
	ID               uint64
	Value            uint64
	UnitMultiplierNs uint64
	IsIncremental    bool
}

// ClockSnapshotMsg is a decoded ClockSnapshot submessage.
type ClockSnapshotMsg struct {
	PrimaryTraceClock uint64
	Clocks            []ClockEntry
}

// DecodeClockSnapshot parses a ClockSnapshot submessage.
func DecodeClockSnapshot(v blob.View) (ClockSnapshotMsg, error) {
	var msg ClockSnapshotMsg
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return ClockSnapshotMsg{}, err
		}
		if !ok {
			break
		}
		switch f.ID {
		case FieldClockSnapshotPrimaryTraceClock:
			msg.PrimaryTraceClock = f.Varint
		case FieldClockSnapshotClocks:
			entry, err := decodeClockEntry(f.Payload)
			if err != nil {
				return ClockSnapshotMsg{}, err
			}
			msg.Clocks = append(msg.Clocks, entry)
		}
	}
	return msg, nil
}

func decodeClockEntry(v blob.View) (ClockEntry, error) {
	var e ClockEntry
	e.UnitMultiplierNs = 1
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return ClockEntry{}, err
		}
		if !ok {
			break
		}
		switch f.ID {
		case FieldClockID:
			e.ID = f.Varint
		case FieldClockTimestamp:
			e.Value = f.Varint
		case FieldClockIsIncremental:
			e.IsIncremental = f.AsBool()
		case FieldClockUnitMultiplier:
			if f.Varint != 0 {
				e.UnitMultiplierNs = f.Varint
			}
		}
	}
	return e, nil
}

// ServiceEventMsg is a decoded TracingServiceEvent submessage.
type ServiceEventMsg struct {
	TracingStarted             bool
	AllDataSourcesStarted      bool
	AllDataSourcesFlushed      bool
	ReadTracingBuffersComplete bool
	TracingDisabled            bool
}

// DecodeServiceEvent parses a service_event submessage.
func DecodeServiceEvent(v blob.View) (ServiceEventMsg, error) {
	var msg ServiceEventMsg
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return ServiceEventMsg{}, err
		}
		if !ok {
			break
		}
		switch f.ID {
		case FieldServiceEventTracingStarted:
			msg.TracingStarted = f.AsBool()
		case FieldServiceEventAllDataSourcesStarted:
			msg.AllDataSourcesStarted = f.AsBool()
		case FieldServiceEventAllDataSourcesFlushed:
			msg.AllDataSourcesFlushed = f.AsBool()
		case FieldServiceEventReadTracingBuffersComplete:
			msg.ReadTracingBuffersComplete = f.AsBool()
		case FieldServiceEventTracingDisabled:
			msg.TracingDisabled = f.AsBool()
		}
	}
	return msg, nil
}

// DefaultsMsg is a decoded TracePacketDefaults submessage; only the
// field the reader consults for timestamp resolution is materialized.
type DefaultsMsg struct {
	HasTimestampClockID bool
	TimestampClockID    uint32
}

// DecodeTracePacketDefaults parses a trace_packet_defaults submessage.
func DecodeTracePacketDefaults(v blob.View) (DefaultsMsg, error) {
	var msg DefaultsMsg
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return DefaultsMsg{}, err
		}
		if !ok {
			break
		}
		if f.ID == FieldDefaultsTimestampClockID {
			msg.HasTimestampClockID = true
			msg.TimestampClockID = uint32(f.Varint)
		}
	}
	return msg, nil
}

// TraceConfigMsg is a decoded TraceConfig submessage.
type TraceConfigMsg struct {
	WriteIntoFile bool
	FlushPeriodMs uint64
}

// DecodeTraceConfig parses a trace_config submessage.
func DecodeTraceConfig(v blob.View) (TraceConfigMsg, error) {
	var msg TraceConfigMsg
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return TraceConfigMsg{}, err
		}
		if !ok {
			break
		}
		switch f.ID {
		case FieldTraceConfigWriteIntoFile:
			msg.WriteIntoFile = f.AsBool()
		case FieldTraceConfigFlushPeriodMs:
			msg.FlushPeriodMs = f.Varint
		}
	}
	return msg, nil
}

// ExtensionSet returns the raw descriptor-set bytes carried by an
// extension_descriptor submessage, as a zero-copy view.
func ExtensionSet(v blob.View) (blob.View, error) {
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return blob.View{}, err
		}
		if !ok {
			return blob.View{}, nil
		}
		if f.ID == FieldExtensionDescriptorSet {
			return f.Payload, nil
		}
	}
}

// ReadInternID extracts the interning id (field 1, by convention) from
// an interned submessage without decoding the rest of it.
func ReadInternID(v blob.View) (uint64, bool, error) {
	d := NewDecoder(v)
	for {
		f, ok, err := d.Next()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil
		}
		if f.ID == FieldInternID {
			return f.Varint, true, nil
		}
	}
}

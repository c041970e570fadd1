package wire

// Outer framing: the input stream is a sequence of TracePacket messages,
// each carried as field 1 of an implicit, never-materialized envelope
// message — the same shape a real protobuf "repeated TracePacket"
// stream takes on the wire. The tokenizer only ever looks at this one
// field id at the outer level.
const TraceFieldPacket uint32 = 1

// TracePacket field ids recognized by the core. Everything else is
// opaque and is forwarded to registered modules untouched.
const (
	FieldTimestamp               uint32 = 1
	FieldTrustedPacketSequenceID uint32 = 2
	FieldSequenceFlags           uint32 = 3
	FieldInternedData            uint32 = 4
	FieldTracePacketDefaults     uint32 = 5
	FieldClockSnapshot           uint32 = 6
	FieldServiceEvent            uint32 = 7
	FieldExtensionDescriptor     uint32 = 8
	FieldCompressedPackets       uint32 = 9
	FieldTraceConfig             uint32 = 10
	FieldTimestampClockID        uint32 = 11
	FieldIncrementalStateCleared uint32 = 12 // bool
	FieldPreviousPacketDropped   uint32 = 13 // bool
	FieldFrameTimelineEvent      uint32 = 14 // presence-only, for the zero-timestamp workaround
	FieldChromeEvents            uint32 = 15 // presence-only
	FieldChromeMetadata          uint32 = 16 // presence-only

	// FieldMaxKnown bounds the field ids the core interprets directly;
	// module dispatch (§4.6 step 11) walks only ids above this range,
	// since parser modules key off their own domain-specific fields.
	FieldMaxKnown uint32 = 16
)

// SequenceFlags bits, carried in FieldSequenceFlags.
const (
	SeqIncrementalStateCleared uint32 = 1 << 0
	SeqNeedsIncrementalState   uint32 = 1 << 1
)

// ClockSnapshot submessage field ids.
const (
	FieldClockSnapshotClocks             uint32 = 1
	FieldClockSnapshotPrimaryTraceClock  uint32 = 2
)

// ClockSnapshot.Clock submessage field ids.
const (
	FieldClockID             uint32 = 1
	FieldClockTimestamp      uint32 = 2
	FieldClockIsIncremental  uint32 = 3
	FieldClockUnitMultiplier uint32 = 4
)

// ServiceEvent submessage field ids, all presence-only booleans.
const (
	FieldServiceEventTracingStarted             uint32 = 1
	FieldServiceEventAllDataSourcesStarted      uint32 = 2
	FieldServiceEventAllDataSourcesFlushed      uint32 = 3
	FieldServiceEventReadTracingBuffersComplete uint32 = 4
	FieldServiceEventTracingDisabled            uint32 = 5
)

// TracePacketDefaults submessage field ids.
const FieldDefaultsTimestampClockID uint32 = 1

// TraceConfig submessage field ids.
const (
	FieldTraceConfigWriteIntoFile   uint32 = 1
	FieldTraceConfigFlushPeriodMs   uint32 = 2
)

// ExtensionDescriptor submessage field ids.
const FieldExtensionDescriptorSet uint32 = 1

// Interned submessages carry their interning id in field 1 by
// convention, regardless of which interned_data field they arrived on.
const FieldInternID uint32 = 1

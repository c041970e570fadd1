package clock

// Builtin clock ids, matching the well-known values a producer may
// reference directly without ever emitting a ClockSnapshot naming them.
const (
	Realtime       uint32 = 1
	RealtimeCoarse uint32 = 2
	Monotonic      uint32 = 3
	MonotonicCoarse uint32 = 4
	MonotonicRaw   uint32 = 5
	Boottime       uint32 = 6
)

// Sequence-scoped clock ids let a producer mint private clock domains
// (e.g. a hardware counter) without a global registry. Any local id in
// this range is only meaningful within the sequence that reported it.
const (
	SeqScopedClockIDMin uint32 = 64
	SeqScopedClockIDMax uint32 = 127
)

// IsSequenceScoped reports whether localID must be resolved relative to
// the sequence that reported it rather than treated as a global id.
func IsSequenceScoped(localID uint32) bool {
	return localID >= SeqScopedClockIDMin && localID <= SeqScopedClockIDMax
}

// GlobalID resolves localID, as reported on sequence seqID, to the id
// used internally by the clock graph. Sequence-scoped ids are packed
// with their owning sequence so two sequences' local id 64 never alias
// each other; builtin and other global ids pass through unchanged.
func GlobalID(seqID uint32, localID uint32) uint64 {
	if IsSequenceScoped(localID) {
		return (uint64(seqID) << 32) | uint64(localID)
	}
	return uint64(localID)
}

// BuiltinName returns the canonical name of a builtin clock id, and
// false for anything else (a sequence-scoped or otherwise unnamed id),
// for the diagnostics snapshot table (§4.5).
func BuiltinName(localID uint32) (string, bool) {
	switch localID {
	case Realtime:
		return "REALTIME", true
	case RealtimeCoarse:
		return "REALTIME_COARSE", true
	case Monotonic:
		return "MONOTONIC", true
	case MonotonicCoarse:
		return "MONOTONIC_COARSE", true
	case MonotonicRaw:
		return "MONOTONIC_RAW", true
	case Boottime:
		return "BOOTTIME", true
	default:
		return "", false
	}
}

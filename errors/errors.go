package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/traceproc/pkg/retry"
)

// Kind classifies an ingestion failure per the four categories the
// trace reader distinguishes.
type Kind int

const (
	// KindCorrupt is a malformed wire encoding: bad varint, trailing
	// bytes after a decoded packet, truncated framing, or a
	// decompression failure. Fatal.
	KindCorrupt Kind = iota
	// KindProtocolViolation is a well-formed but semantically illegal
	// packet: needs_incremental_state or a sequence-scoped clock id
	// with trusted_packet_sequence_id == 0. Fatal.
	KindProtocolViolation
	// KindSoftLoss is data the reader can drop and keep going: a
	// clock conversion failure, interned_data on an invalid sequence,
	// a zero-timestamp frame-timeline packet, or a previous-packet-
	// dropped notification. Counted via stats, never fatal.
	KindSoftLoss
	// KindLifecycleWarning is worth telling an operator about but
	// does not affect ingestion correctness, e.g. a write-into-file
	// trace missing flush_period_ms.
	KindLifecycleWarning
	// KindTransient is an I/O-layer failure around opening or reading
	// an input source, unrelated to trace content, eligible for retry.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindSoftLoss:
		return "soft_loss"
	case KindLifecycleWarning:
		return "lifecycle_warning"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Sentinel errors for conditions callers branch on.
var (
	// ErrTrailingBytes means the wire decoder left unconsumed bytes
	// after decoding every known field: the packet is corrupt.
	ErrTrailingBytes = errors.New("trailing bytes after decoded packet")
	// ErrTruncatedPacket means the input stream ended mid-packet.
	ErrTruncatedPacket = errors.New("truncated packet at end of stream")
	// ErrMalformedVarint means a varint continuation bit never terminated.
	ErrMalformedVarint = errors.New("malformed varint")
	// ErrDecompressionFailed means a compressed_packets bundle failed
	// to inflate.
	ErrDecompressionFailed = errors.New("compressed_packets decompression failed")

	// ErrSequenceScopedClockNoSequence means a clock id in the range
	// 64-127 was presented with trusted_packet_sequence_id == 0.
	ErrSequenceScopedClockNoSequence = errors.New("sequence-scoped clock id with no sequence id")
	// ErrNeedsIncrementalStateNoSequence means SEQ_NEEDS_INCREMENTAL_STATE
	// was set with trusted_packet_sequence_id == 0.
	ErrNeedsIncrementalStateNoSequence = errors.New("needs_incremental_state with no trusted_packet_sequence_id")

	// ErrWriteIntoFileNoFlushPeriod means a trace_config declares
	// write_into_file without a flush_period_ms: the trace file may
	// never see its buffered data flushed to disk.
	ErrWriteIntoFileNoFlushPeriod = errors.New("write_into_file trace has no flush_period_ms")

	// ErrIncrementalStateInvalid means a sequence's incremental state
	// cannot currently be trusted; interning is skipped, not failed.
	ErrIncrementalStateInvalid = errors.New("incremental state invalid, awaiting clear")
	// ErrClockConversionFailed means no path connects a clock to the
	// trace-time clock.
	ErrClockConversionFailed = errors.New("no path to trace-time clock")

	// ErrMissingConfig, ErrInvalidConfig cover daemon configuration
	// loading and validation (§10.3, §12).
	ErrMissingConfig = errors.New("missing required configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInputUnavailable covers transient failures opening or reading
	// an input file, eligible for retry via pkg/retry.
	ErrInputUnavailable = errors.New("input source unavailable")
)

// ClassifiedError wraps an error with its Kind and the component and
// operation that produced it.
type ClassifiedError struct {
	Kind      Kind
	Err       error
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("%s.%s: %v", ce.Component, ce.Operation, ce.Err)
}

func (ce *ClassifiedError) Unwrap() error { return ce.Err }

// Classify returns the Kind for err, preferring an explicit
// ClassifiedError, then known sentinels, then a conservative default.
func Classify(err error) Kind {
	if err == nil {
		return KindSoftLoss
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	switch {
	case errors.Is(err, ErrTrailingBytes),
		errors.Is(err, ErrTruncatedPacket),
		errors.Is(err, ErrMalformedVarint),
		errors.Is(err, ErrDecompressionFailed):
		return KindCorrupt
	case errors.Is(err, ErrSequenceScopedClockNoSequence),
		errors.Is(err, ErrNeedsIncrementalStateNoSequence):
		return KindProtocolViolation
	case errors.Is(err, ErrIncrementalStateInvalid),
		errors.Is(err, ErrClockConversionFailed):
		return KindSoftLoss
	case errors.Is(err, ErrWriteIntoFileNoFlushPeriod):
		return KindLifecycleWarning
	case errors.Is(err, ErrInputUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	}

	if isTransientMessage(err) {
		return KindTransient
	}
	return KindCorrupt
}

func isTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable", "busy"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether an error's Kind should ever be retried
// (only I/O around opening/reading an input source, never anything
// about trace content).
func IsRetryable(err error) bool {
	return Classify(err) == KindTransient
}

func newClassified(kind Kind, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err, Component: component, Operation: operation}
}

// Wrap adds component/operation context without classification.
func Wrap(err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %w", component, operation, err)
}

// WrapCorrupt classifies err as fatal corrupt-input.
func WrapCorrupt(err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindCorrupt, err, component, operation)
}

// WrapProtocolViolation classifies err as a fatal protocol violation.
func WrapProtocolViolation(err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindProtocolViolation, err, component, operation)
}

// WrapTransient classifies err as retryable I/O.
func WrapTransient(err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindTransient, err, component, operation)
}

// WrapLifecycleWarning classifies err as a non-fatal lifecycle
// warning: worth logging at warn severity, never a reason to abort
// ingestion.
func WrapLifecycleWarning(err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindLifecycleWarning, err, component, operation)
}

// RetryConfig configures how many times, and with what backoff, the
// daemon retries opening or reading an input source (§11.1). It is
// never consulted inside the ingestion core itself.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns a sensible default for input-source I/O.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// ToRetryConfig converts to pkg/retry's Config, enabling jitter for
// production use.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxAttempts,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
		AddJitter:    true,
	}
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindCorrupt, "corrupt"},
		{KindProtocolViolation, "protocol_violation"},
		{KindSoftLoss, "soft_loss"},
		{KindLifecycleWarning, "lifecycle_warning"},
		{KindTransient, "transient"},
		{Kind(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil error", nil, KindSoftLoss},
		{"trailing bytes", ErrTrailingBytes, KindCorrupt},
		{"truncated packet", ErrTruncatedPacket, KindCorrupt},
		{"malformed varint", ErrMalformedVarint, KindCorrupt},
		{"decompression failed", ErrDecompressionFailed, KindCorrupt},
		{"sequence-scoped clock no sequence", ErrSequenceScopedClockNoSequence, KindProtocolViolation},
		{"needs incremental state no sequence", ErrNeedsIncrementalStateNoSequence, KindProtocolViolation},
		{"incremental state invalid", ErrIncrementalStateInvalid, KindSoftLoss},
		{"clock conversion failed", ErrClockConversionFailed, KindSoftLoss},
		{"input unavailable", ErrInputUnavailable, KindTransient},
		{"context deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"context canceled", context.Canceled, KindTransient},
		{"unknown error defaults corrupt", fmt.Errorf("some unrecognized failure"), KindCorrupt},
		{"transient message pattern", fmt.Errorf("temporary network hiccup"), KindTransient},
		{"classified error wins", &ClassifiedError{Kind: KindTransient, Err: fmt.Errorf("x")}, KindTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(ErrTrailingBytes) {
		t.Error("corrupt input must not be retryable")
	}
	if !IsRetryable(ErrInputUnavailable) {
		t.Error("input-source unavailability must be retryable")
	}
}

func TestClassifiedError(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	ce := newClassified(KindTransient, baseErr, "reader", "Parse")

	if ce.Kind != KindTransient {
		t.Errorf("expected KindTransient, got %v", ce.Kind)
	}
	if ce.Error() != "reader.Parse: base error" {
		t.Errorf("unexpected error string: %s", ce.Error())
	}
	if !errors.Is(ce, baseErr) {
		t.Error("classified error should unwrap to base error")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "component", "operation") != nil {
		t.Error("Wrap(nil, ...) must return nil")
	}
	err := Wrap(fmt.Errorf("boom"), "reader", "handlePacket")
	if err == nil || err.Error() != "reader.handlePacket: boom" {
		t.Errorf("unexpected wrap result: %v", err)
	}
}

func TestWrapClassifiedVariants(t *testing.T) {
	baseErr := fmt.Errorf("boom")

	tests := []struct {
		name     string
		wrapFunc func(error, string, string) error
		kind     Kind
	}{
		{"WrapCorrupt", WrapCorrupt, KindCorrupt},
		{"WrapProtocolViolation", WrapProtocolViolation, KindProtocolViolation},
		{"WrapTransient", WrapTransient, KindTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.wrapFunc(baseErr, "reader", "handlePacket")

			var ce *ClassifiedError
			if !errors.As(result, &ce) {
				t.Fatal("result should be a ClassifiedError")
			}
			if ce.Kind != test.kind {
				t.Errorf("expected %v, got %v", test.kind, ce.Kind)
			}
			if !errors.Is(result, baseErr) {
				t.Error("wrapped error should unwrap to the base error")
			}
		})
	}
}

func TestDefaultRetryConfig_ToRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	converted := rc.ToRetryConfig()

	if converted.MaxAttempts != rc.MaxAttempts {
		t.Errorf("expected MaxAttempts %d, got %d", rc.MaxAttempts, converted.MaxAttempts)
	}
	if converted.InitialDelay != rc.InitialDelay {
		t.Errorf("expected InitialDelay %v, got %v", rc.InitialDelay, converted.InitialDelay)
	}
	if converted.MaxDelay != rc.MaxDelay {
		t.Errorf("expected MaxDelay %v, got %v", rc.MaxDelay, converted.MaxDelay)
	}
	if !converted.AddJitter {
		t.Error("expected AddJitter to be true")
	}
}

func TestStandardErrorsAreDefined(t *testing.T) {
	standardErrors := []error{
		ErrTrailingBytes,
		ErrTruncatedPacket,
		ErrMalformedVarint,
		ErrDecompressionFailed,
		ErrSequenceScopedClockNoSequence,
		ErrNeedsIncrementalStateNoSequence,
		ErrIncrementalStateInvalid,
		ErrClockConversionFailed,
		ErrMissingConfig,
		ErrInvalidConfig,
		ErrInputUnavailable,
	}

	for i, err := range standardErrors {
		if err == nil {
			t.Errorf("standard error at index %d is nil", i)
		}
		if err.Error() == "" {
			t.Errorf("standard error at index %d has empty message", i)
		}
	}
}

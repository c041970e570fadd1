package blob_test

import (
	"testing"

	"github.com/c360/traceproc/blob"
)

func TestWholeAndBytes(t *testing.T) {
	b := blob.New([]byte("hello world"))
	v := blob.Whole(b)
	defer v.Release()

	if got := string(v.Bytes()); got != "hello world" {
		t.Fatalf("Bytes() = %q, want %q", got, "hello world")
	}
	if v.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", v.Len())
	}
}

func TestSliceSharesBackingArray(t *testing.T) {
	b := blob.New([]byte("hello world"))
	whole := blob.Whole(b)
	defer whole.Release()

	sub, err := whole.Slice(6, 5)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	defer sub.Release()

	if got := string(sub.Bytes()); got != "world" {
		t.Fatalf("sub.Bytes() = %q, want %q", got, "world")
	}
	if b.Refs() != 2 {
		t.Fatalf("Refs() = %d, want 2", b.Refs())
	}
}

func TestSliceOutOfBounds(t *testing.T) {
	b := blob.New([]byte("short"))
	v := blob.Whole(b)
	defer v.Release()

	if _, err := v.Slice(3, 10); err == nil {
		t.Fatal("expected out-of-bounds error, got nil")
	}
}

func TestReleaseFreesBackingArray(t *testing.T) {
	b := blob.New([]byte("data"))
	v := blob.Whole(b)
	if b.Refs() != 1 {
		t.Fatalf("Refs() = %d, want 1", b.Refs())
	}
	v.Release()
	if b.Refs() != 0 {
		t.Fatalf("Refs() = %d, want 0 after release", b.Refs())
	}
}

func TestOffsetOf(t *testing.T) {
	b := blob.New([]byte("0123456789"))
	v := blob.Whole(b)
	defer v.Release()

	sub, err := v.Slice(3, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	defer sub.Release()

	off, ok := v.OffsetOf(sub.Bytes())
	if !ok {
		t.Fatal("OffsetOf returned ok=false")
	}
	if off != 3 {
		t.Fatalf("OffsetOf() = %d, want 3", off)
	}
}

func TestOffsetOfForeignSlice(t *testing.T) {
	b := blob.New([]byte("0123456789"))
	v := blob.Whole(b)
	defer v.Release()

	foreign := []byte("nope")
	if _, ok := v.OffsetOf(foreign); ok {
		t.Fatal("expected ok=false for a slice from a different backing array")
	}
}

func TestEmptyView(t *testing.T) {
	e := blob.Empty()
	if !e.IsZero() {
		t.Fatal("Empty() should be zero")
	}
	if e.Len() != 0 || e.Bytes() != nil {
		t.Fatalf("Empty() should have zero length and nil bytes, got len=%d bytes=%v", e.Len(), e.Bytes())
	}
	e.Release() // must not panic
}

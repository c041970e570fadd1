package sorter_test

import (
	"testing"

	"github.com/c360/traceproc/blob"
	"github.com/c360/traceproc/sorter"
)

func entry(ts int64) sorter.Entry {
	return sorter.Entry{TraceTimeNs: ts, Payload: blob.Whole(blob.New([]byte("x")))}
}

func TestWindowedReleaseInOrder(t *testing.T) {
	var out []int64
	s := sorter.New(sorter.ModeWindowed, 100, func(e sorter.Entry) error {
		out = append(out, e.TraceTimeNs)
		return nil
	})

	// Nothing releases until the window has advanced past a timestamp.
	must(t, s.Push(entry(50)))
	must(t, s.Push(entry(30)))
	if len(out) != 0 {
		t.Fatalf("expected no releases yet, got %v", out)
	}

	must(t, s.Push(entry(200))) // max=200, threshold=100: releases 30, 50
	if len(out) != 2 || out[0] != 30 || out[1] != 50 {
		t.Fatalf("expected [30 50], got %v", out)
	}

	must(t, s.NotifyEndOfFile())
	if len(out) != 3 || out[2] != 200 {
		t.Fatalf("expected final entry 200 released at EOF, got %v", out)
	}
}

func TestStableTieBreakOnEqualTimestamps(t *testing.T) {
	var order []string
	s := sorter.New(sorter.ModeFullSort, 0, func(e sorter.Entry) error {
		order = append(order, string(e.Payload.Bytes()))
		return nil
	})

	push := func(ts int64, tag string) {
		v := blob.Whole(blob.New([]byte(tag)))
		must(t, s.Push(sorter.Entry{TraceTimeNs: ts, Payload: v}))
	}
	push(10, "a")
	push(10, "b")
	push(10, "c")
	must(t, s.NotifyEndOfFile())

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected insertion order preserved for equal timestamps, got %v", order)
	}
}

func TestFullSortBuffersUntilEndOfFile(t *testing.T) {
	var out []int64
	s := sorter.New(sorter.ModeFullSort, 0, func(e sorter.Entry) error {
		out = append(out, e.TraceTimeNs)
		return nil
	})

	must(t, s.Push(entry(300)))
	must(t, s.Push(entry(100)))
	must(t, s.Push(entry(200)))
	if len(out) != 0 {
		t.Fatalf("full-sort mode must not release before end of file, got %v", out)
	}

	must(t, s.NotifyEndOfFile())
	if len(out) != 3 || out[0] != 100 || out[1] != 200 || out[2] != 300 {
		t.Fatalf("expected sorted [100 200 300], got %v", out)
	}
}

func TestFlushEventReleasesEverythingBufferedSoFar(t *testing.T) {
	var out []int64
	s := sorter.New(sorter.ModeWindowed, 1000, func(e sorter.Entry) error {
		out = append(out, e.TraceTimeNs)
		return nil
	})

	must(t, s.Push(entry(10)))
	must(t, s.Push(entry(20)))
	if len(out) != 0 {
		t.Fatalf("window of 1000 should not have released yet, got %v", out)
	}

	must(t, s.NotifyFlushEvent(20))
	if len(out) != 2 {
		t.Fatalf("expected flush to release both buffered entries, got %v", out)
	}
}

func TestKeepaliveReleasedOnEmit(t *testing.T) {
	var released int
	kv := keepaliveFunc(func() { released++ })

	s := sorter.New(sorter.ModeFullSort, 0, func(e sorter.Entry) error { return nil })
	must(t, s.Push(sorter.Entry{TraceTimeNs: 1, Payload: blob.Whole(blob.New([]byte("x"))), Keepalive: kv}))
	must(t, s.NotifyEndOfFile())

	if released != 1 {
		t.Fatalf("expected keepalive released exactly once, got %d", released)
	}
}

func TestMaxTimestamp(t *testing.T) {
	s := sorter.New(sorter.ModeFullSort, 0, func(e sorter.Entry) error { return nil })
	if _, ok := s.MaxTimestamp(); ok {
		t.Fatal("expected no max timestamp before any push")
	}
	must(t, s.Push(entry(5)))
	must(t, s.Push(entry(3)))
	max, ok := s.MaxTimestamp()
	if !ok || max != 5 {
		t.Fatalf("expected max=5, got %d ok=%v", max, ok)
	}
}

type keepaliveFunc func()

func (f keepaliveFunc) Release() { f() }

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

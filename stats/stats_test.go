package stats_test

import (
	"sync"
	"testing"

	"github.com/c360/traceproc/stats"
)

func TestIncrementAndGet(t *testing.T) {
	c := stats.New()
	if got := c.Get(stats.ClockSyncFailure); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	c.Increment(stats.ClockSyncFailure)
	c.Increment(stats.ClockSyncFailure)
	if got := c.Get(stats.ClockSyncFailure); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestAdd(t *testing.T) {
	c := stats.New()
	c.Add(stats.TokenizerSkippedPackets, 5)
	c.Add(stats.TokenizerSkippedPackets, 3)
	if got := c.Get(stats.TokenizerSkippedPackets); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}

func TestCountersAreIndependent(t *testing.T) {
	c := stats.New()
	c.Increment(stats.TokenizerSkippedPackets)
	c.Increment(stats.InternedDataTokenizerErrors)
	c.Increment(stats.InternedDataTokenizerErrors)

	if got := c.Get(stats.TokenizerSkippedPackets); got != 1 {
		t.Fatalf("TokenizerSkippedPackets: expected 1, got %d", got)
	}
	if got := c.Get(stats.InternedDataTokenizerErrors); got != 2 {
		t.Fatalf("InternedDataTokenizerErrors: expected 2, got %d", got)
	}
	if got := c.Get(stats.FrameTimelineEventParserErrors); got != 0 {
		t.Fatalf("FrameTimelineEventParserErrors: expected 0, got %d", got)
	}
}

func TestSnapshot(t *testing.T) {
	c := stats.New()
	c.Increment(stats.ClockSyncFailure)
	snap := c.Snapshot()
	if snap["clock_sync_failure"] != 1 {
		t.Fatalf("expected clock_sync_failure=1 in snapshot, got %v", snap)
	}
	if _, ok := snap["tokenizer_skipped_packets"]; !ok {
		t.Fatalf("expected snapshot to include every counter, missing tokenizer_skipped_packets: %v", snap)
	}
}

func TestConcurrentIncrement(t *testing.T) {
	c := stats.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment(stats.TokenizerSkippedPackets)
		}()
	}
	wg.Wait()
	if got := c.Get(stats.TokenizerSkippedPackets); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestOutOfRangeCounterIsNoop(t *testing.T) {
	c := stats.New()
	bogus := stats.Counter(999)
	c.Increment(bogus)
	if got := c.Get(bogus); got != 0 {
		t.Fatalf("expected out-of-range counter to be a no-op, got %d", got)
	}
}

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRecordTimingAndSnapshot(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpFetch, 100*time.Millisecond)
	c.RecordTiming(OpFetch, 300*time.Millisecond)
	c.RecordError(OpFetch)

	snap := c.Snapshot()
	op, ok := snap.Operations[OpFetch]
	if !ok {
		t.Fatal("fetch operation missing from snapshot")
	}
	if op.Count != 2 {
		t.Errorf("Count = %d, want 2", op.Count)
	}
	if op.Errors != 1 {
		t.Errorf("Errors = %d, want 1", op.Errors)
	}
	if op.TotalTimeMs != 400 {
		t.Errorf("TotalTimeMs = %d, want 400", op.TotalTimeMs)
	}
	if op.MinTimeMs != 100 || op.MaxTimeMs != 300 {
		t.Errorf("min/max = %d/%d, want 100/300", op.MinTimeMs, op.MaxTimeMs)
	}
	if op.AvgTimeMs != 200 {
		t.Errorf("AvgTimeMs = %v, want 200", op.AvgTimeMs)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v", snap.UptimeSeconds)
	}
}

func TestObserve(t *testing.T) {
	c := NewCollector()

	if err := c.Observe(OpDBQuery, func() error { return nil }); err != nil {
		t.Errorf("Observe() = %v", err)
	}
	wantErr := errors.New("query failed")
	if err := c.Observe(OpDBQuery, func() error { return wantErr }); err != wantErr {
		t.Errorf("Observe() = %v, want the callback error", err)
	}

	op := c.Snapshot().Operations[OpDBQuery]
	if op.Count != 2 {
		t.Errorf("Count = %d, want 2", op.Count)
	}
	if op.Errors != 1 {
		t.Errorf("Errors = %d, want 1", op.Errors)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.RecordTiming(OpEmbed, time.Millisecond)
				c.RecordError(OpBM25Search)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if got := snap.Operations[OpEmbed].Count; got != 800 {
		t.Errorf("embed Count = %d, want 800", got)
	}
	if got := snap.Operations[OpBM25Search].Errors; got != 800 {
		t.Errorf("bm25 Errors = %d, want 800", got)
	}
}

func TestSnapshotEmptyCollector(t *testing.T) {
	snap := NewCollector().Snapshot()
	if len(snap.Operations) != 0 {
		t.Errorf("empty collector reports %d operations", len(snap.Operations))
	}
}

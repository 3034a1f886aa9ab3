package coordinator

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestBatchTrackerCompletesExactlyOnce(t *testing.T) {
	tr := NewBatchTracker()
	tr.Create("B1", 3, "chan-1", []string{"1", "2", "3"})

	if snap := tr.RecordOutcome("B1", true, "1"); snap != nil {
		t.Error("snapshot returned before the batch completed")
	}
	if snap := tr.RecordOutcome("B1", false, "2"); snap != nil {
		t.Error("snapshot returned before the batch completed")
	}

	snap := tr.RecordOutcome("B1", false, "3")
	if snap == nil {
		t.Fatal("no snapshot on the final outcome")
	}
	if snap.Total != 3 || snap.Succeeded != 1 || snap.Failed != 2 {
		t.Errorf("snapshot counts = %d/%d/%d, want 3/1/2", snap.Total, snap.Succeeded, snap.Failed)
	}
	if snap.ChannelID != "chan-1" {
		t.Errorf("snapshot channel = %q, want chan-1", snap.ChannelID)
	}
	if len(snap.FailedIDs) != 2 || snap.FailedIDs[0] != "2" || snap.FailedIDs[1] != "3" {
		t.Errorf("FailedIDs = %v, want [2 3]", snap.FailedIDs)
	}

	// The record is gone; further outcomes are ignored.
	if snap := tr.RecordOutcome("B1", true, "4"); snap != nil {
		t.Error("snapshot returned again after the batch resolved")
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
}

func TestBatchTrackerUnknownBatch(t *testing.T) {
	tr := NewBatchTracker()
	if snap := tr.RecordOutcome("missing", true, "1"); snap != nil {
		t.Error("outcome for unknown batch produced a snapshot")
	}
}

func TestBatchTrackerSingleJobBatch(t *testing.T) {
	tr := NewBatchTracker()
	tr.Create("B2", 1, "chan-2", []string{"42"})

	snap := tr.RecordOutcome("B2", true, "42")
	if snap == nil {
		t.Fatal("single-member batch did not resolve on its only outcome")
	}
	if snap.Succeeded != 1 || snap.Failed != 0 {
		t.Errorf("counts = %d/%d, want 1/0", snap.Succeeded, snap.Failed)
	}
}

func TestBatchTrackerConcurrentOutcomes(t *testing.T) {
	tr := NewBatchTracker()
	const members = 20
	ids := make([]string, members)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	tr.Create("B3", members, "chan-3", ids)

	var snapshots atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if snap := tr.RecordOutcome("B3", i%2 == 0, ids[i]); snap != nil {
				snapshots.Add(1)
				if snap.Succeeded+snap.Failed != members {
					t.Errorf("snapshot fired with %d outcomes, want %d", snap.Succeeded+snap.Failed, members)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := snapshots.Load(); got != 1 {
		t.Errorf("snapshot fired %d times, want exactly once", got)
	}
}

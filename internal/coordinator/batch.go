package coordinator

import "sync"

// CompletedBatch is the snapshot returned exactly once when the final member
// of a batch resolves.
type CompletedBatch struct {
	ID           string
	ChannelID    string
	Total        int
	Succeeded    int
	Failed       int
	MemberIDs    []string
	SucceededIDs []string
	FailedIDs    []string
}

type batchState struct {
	channelID    string
	total        int
	succeeded    int
	failed       int
	memberIDs    []string
	succeededIDs []string
	failedIDs    []string
}

// BatchTracker aggregates per-batch completion counts for jobs submitted
// together. Records are deleted the instant the final outcome arrives, so the
// completion snapshot fires exactly once even under concurrent completions.
type BatchTracker struct {
	mu      sync.Mutex
	batches map[string]*batchState
}

func NewBatchTracker() *BatchTracker {
	return &BatchTracker{
		batches: make(map[string]*batchState),
	}
}

// Create initializes a zeroed record for batchID covering total jobs.
func (t *BatchTracker) Create(batchID string, total int, channelID string, memberIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batches[batchID] = &batchState{
		channelID: channelID,
		total:     total,
		memberIDs: append([]string(nil), memberIDs...),
	}
}

// RecordOutcome registers one member's terminal outcome. On the outcome that
// completes the batch it atomically removes the record and returns a snapshot;
// otherwise, and for unknown batch ids, it returns nil. Cancellation is
// recorded as a failure by the caller.
func (t *BatchTracker) RecordOutcome(batchID string, succeeded bool, galleryID string) *CompletedBatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, ok := t.batches[batchID]
	if !ok {
		return nil
	}

	if succeeded {
		batch.succeeded++
		if galleryID != "" {
			batch.succeededIDs = append(batch.succeededIDs, galleryID)
		}
	} else {
		batch.failed++
		if galleryID != "" {
			batch.failedIDs = append(batch.failedIDs, galleryID)
		}
	}

	if batch.succeeded+batch.failed < batch.total {
		return nil
	}

	delete(t.batches, batchID)
	return &CompletedBatch{
		ID:           batchID,
		ChannelID:    batch.channelID,
		Total:        batch.total,
		Succeeded:    batch.succeeded,
		Failed:       batch.failed,
		MemberIDs:    batch.memberIDs,
		SucceededIDs: batch.succeededIDs,
		FailedIDs:    batch.failedIDs,
	}
}

// Len reports the number of batches still awaiting completion.
func (t *BatchTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.batches)
}

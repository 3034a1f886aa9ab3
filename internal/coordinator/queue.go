package coordinator

import (
	"sync"
	"time"

	"hentai-fetcher/internal/models"
)

// JobQueue is an unbounded FIFO of download requests. Any number of producers
// may enqueue; the download worker is the single consumer. Enqueue never
// blocks. Jobs are held only in memory and are lost on restart.
type JobQueue struct {
	mu     sync.Mutex
	items  []models.Job
	signal chan struct{}
}

func NewJobQueue() *JobQueue {
	return &JobQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a job to the tail of the queue.
func (q *JobQueue) Enqueue(job models.Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()

	// Wake a waiting consumer. The channel carries at most one pending
	// wakeup; the consumer re-checks the queue after every wakeup anyway.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest job, blocking up to timeout when the
// queue is empty. The second return value reports whether a job was obtained.
func (q *JobQueue) Dequeue(timeout time.Duration) (models.Job, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if job, ok := q.tryDequeue(); ok {
			return job, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return models.Job{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
			// One final check below via the loop; the next iteration will
			// observe the expired deadline if nothing arrived.
		}
	}
}

func (q *JobQueue) tryDequeue() (models.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.Job{}, false
	}
	job := q.items[0]
	q.items = q.items[1:]

	// A single wakeup may have covered several enqueues; re-arm the signal
	// so the consumer drains the remainder without waiting out the timeout.
	if len(q.items) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return job, true
}

// Len reports the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

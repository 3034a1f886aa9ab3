// Package coordinator owns the process-wide download state: the job queue,
// the cancellation registry and the batch tracker. A single Coordinator is
// constructed at startup and passed by reference to command handlers and the
// download worker.
package coordinator

// Coordinator bundles the three shared structures so no package-level global
// state is needed.
type Coordinator struct {
	Queue   *JobQueue
	Cancels *CancelRegistry
	Batches *BatchTracker
}

func New() *Coordinator {
	return &Coordinator{
		Queue:   NewJobQueue(),
		Cancels: NewCancelRegistry(),
		Batches: NewBatchTracker(),
	}
}

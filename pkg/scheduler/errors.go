package scheduler

import (
	"errors"
	"fmt"
)

// ErrJobTimeout is reported to a job whose worker exceeded the job timeout.
// The worker is recycled and the job is not retried.
var ErrJobTimeout = errors.New("rewrite job timed out")

// ErrPoolClosed is returned by Submit after Close and reported to jobs that
// were queued or running when the pool closed.
var ErrPoolClosed = errors.New("scheduler pool closed")

// WorkerFault reports a worker that panicked while a job was assigned. The
// worker is discarded and replaced.
type WorkerFault struct {
	WorkerID int
	JobID    string
	Value    any
	Stack    []byte
}

func (f *WorkerFault) Error() string {
	return fmt.Sprintf("worker %d faulted on job %s: %v", f.WorkerID, f.JobID, f.Value)
}

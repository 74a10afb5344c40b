package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/yaklabco/passthrough/pkg/contentkind"
)

// Job is one buffered response body to rewrite.
//
// Rewritten output is uncompressed UTF-8. A body whose kind is not
// rewritable is echoed byte for byte, still carrying ContentEncoding.
type Job struct {
	// Kind selects the rewriter. Empty means resolve it from ContentType,
	// sniffing the decoded body when the type is generic.
	Kind contentkind.Kind

	// ContentType is the response Content-Type, used for kind resolution
	// and charset detection.
	ContentType string

	// ContentEncoding is the response Content-Encoding, removed before
	// rewriting.
	ContentEncoding string

	// Body is the buffered response body. The pool does not modify it.
	Body []byte

	// OnChunk receives output in order. The slice is not retained by the
	// pool after the call returns.
	OnChunk func(chunk []byte)

	// OnEnd fires once after the last chunk. It never fires together with
	// OnError.
	OnEnd func()

	// OnError fires once when the job fails. No chunks follow it.
	OnError func(err error)
}

// Handle tracks a submitted job.
type Handle struct {
	// ID identifies the job in logs.
	ID string

	done chan struct{}
	err  error
}

// Done is closed once the job has ended or failed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the job's failure after Done is closed, or nil on success.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// task is the pool's record of a job. Its callbacks are serialized by mu,
// and finished guarantees a single terminal callback whichever of the
// worker and the scheduler reaches it first.
type task struct {
	id        string
	job       Job
	handle    *Handle
	submitted time.Time

	mu       sync.Mutex
	finished bool
}

func newTask(id string, job Job) *task {
	return &task{
		id:        id,
		job:       job,
		handle:    &Handle{ID: id, done: make(chan struct{})},
		submitted: time.Now(),
	}
}

func (t *task) chunk(p []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return false
	}
	if t.job.OnChunk != nil {
		t.job.OnChunk(p)
	}
	return true
}

// finish delivers the terminal callback: OnEnd when err is nil, OnError
// otherwise. record runs first, before Done is closed. It reports false
// when the job had already finished.
func (t *task) finish(err error, record func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return false
	}
	t.finished = true
	t.handle.err = err
	defer close(t.handle.done)

	record()
	switch {
	case err == nil && t.job.OnEnd != nil:
		t.job.OnEnd()
	case err != nil && t.job.OnError != nil:
		t.job.OnError(err)
	}
	return true
}

package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/payload"
)

type eventKind int

const (
	// evIdle reports that a worker finished its job and can take another.
	evIdle eventKind = iota
	// evExited reports that a worker goroutine returned.
	evExited
)

type event struct {
	kind   eventKind
	worker *worker
	fault  *WorkerFault
}

type assignment struct {
	ctx  context.Context
	task *task
}

// worker is one long-lived goroutine. Fields other than id and jobs belong
// to the scheduling goroutine.
type worker struct {
	id   int
	jobs chan assignment

	current     *task
	assignedAt  time.Time
	cancel      context.CancelFunc
	terminating bool
}

// spawn starts a new idle worker. It must be called from the scheduling
// goroutine or before it starts.
func (p *Pool) spawn() *worker {
	p.nextID++
	w := &worker{id: p.nextID, jobs: make(chan assignment, 1)}

	p.workerWG.Add(1)
	go p.run(w)
	return w
}

func (p *Pool) run(w *worker) {
	defer p.workerWG.Done()

	var fault *WorkerFault
	defer func() { p.send(event{kind: evExited, worker: w, fault: fault}) }()

	for {
		select {
		case <-p.done:
			return
		case a := <-w.jobs:
			fault = p.process(w, a)
			if fault != nil {
				return
			}
			if a.ctx.Err() != nil {
				// Abandoned by a timeout or by Close; this worker is replaced.
				return
			}
			p.send(event{kind: evIdle, worker: w})
		}
	}
}

// send delivers an event unless the pool has shut down.
func (p *Pool) send(ev event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

// process runs one job. A panic becomes a WorkerFault reported to the job.
func (p *Pool) process(w *worker, a assignment) (fault *WorkerFault) {
	t := a.task
	start := time.Now()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fault = &WorkerFault{WorkerID: w.id, JobID: t.id, Value: r, Stack: debug.Stack()}
		p.finish(t, OutcomeFault, fault)
	}()

	out, err := p.execute(a.ctx, t.job)
	if err != nil {
		if a.ctx.Err() != nil {
			// The scheduler has already reported this job.
			return nil
		}
		p.log.Debug("job failed",
			logging.FieldJobID, t.id,
			logging.FieldWorker, w.id,
			logging.FieldError, err)
		p.finish(t, OutcomeFailed, err)
		return nil
	}

	if !p.stream(a.ctx, t, out) {
		return nil
	}
	if p.finish(t, OutcomeCompleted, nil) {
		p.log.Debug("job completed",
			logging.FieldJobID, t.id,
			logging.FieldWorker, w.id,
			logging.FieldBytes, len(out),
			logging.FieldElapsed, time.Since(start))
	}
	return nil
}

// execute prepares the body and rewrites it. Bodies that resolve to a
// kind without a rewriter are returned untouched.
func (p *Pool) execute(ctx context.Context, job Job) ([]byte, error) {
	kind := job.Kind
	if kind == "" && !contentkind.Generic(job.ContentType) {
		kind = contentkind.Classify(job.ContentType)
	}
	if kind != "" && !kind.Rewritable() {
		return job.Body, nil
	}

	decoded, err := payload.Decode(job.ContentEncoding, job.Body, p.opts.MaxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	if kind == "" {
		kind = contentkind.Sniff(decoded)
		if !kind.Rewritable() {
			return job.Body, nil
		}
	}

	text, err := payload.ToUTF8(job.ContentType, kind, decoded)
	if err != nil {
		return nil, fmt.Errorf("convert body to UTF-8: %w", err)
	}

	out, err := p.opts.Rewriter.Rewrite(ctx, kind, text)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", kind, err)
	}
	return []byte(out), nil
}

// stream passes out to the job in ChunkSize pieces. It stops early when the
// assignment is cancelled or the job was already finished elsewhere.
func (p *Pool) stream(ctx context.Context, t *task, out []byte) bool {
	size := p.opts.ChunkSize
	for off := 0; off < len(out); off += size {
		if ctx.Err() != nil {
			return false
		}
		end := min(off+size, len(out))
		if !t.chunk(out[off:end]) {
			return false
		}
	}
	return ctx.Err() == nil
}

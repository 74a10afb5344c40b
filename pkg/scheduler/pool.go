// Package scheduler runs rewrite jobs on a fixed pool of long-lived workers.
//
// A single scheduling goroutine owns the worker table and the FIFO queue.
// Every TickInterval it fails jobs that have run past JobTimeout and assigns
// queued jobs to idle workers. Workers report back through a channel, so the
// table is never shared between goroutines.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/yaklabco/passthrough/internal/logging"
)

// Stats is a snapshot of the pool.
type Stats struct {
	Workers   int
	Busy      int
	Queued    int
	Submitted uint64
	Completed uint64
	Failed    uint64
	TimedOut  uint64
	Faulted   uint64
	Respawns  uint64
}

// Pool dispatches jobs to workers. It is safe for concurrent use.
type Pool struct {
	opts    Options
	log     *log.Logger
	metrics *Metrics

	submitCh chan *task
	events   chan event
	statsCh  chan chan Stats
	stop     chan struct{}
	done     chan struct{}
	loopDone chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc
	closeOnce  sync.Once
	workerWG   sync.WaitGroup
	pending    sync.WaitGroup

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	timedOut  atomic.Uint64
	faulted   atomic.Uint64
	respawns  atomic.Uint64

	// Owned by the scheduling goroutine.
	workers []*worker
	queue   []*task
	nextID  int
	final   Stats
}

// New starts a pool with opts.Workers idle workers.
func New(opts Options) (*Pool, error) {
	if opts.Rewriter == nil {
		return nil, errors.New("scheduler: Options.Rewriter is required")
	}
	opts = opts.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	p := &Pool{
		opts:       opts,
		log:        logger,
		metrics:    metrics,
		submitCh:   make(chan *task),
		events:     make(chan event),
		statsCh:    make(chan chan Stats),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	for range opts.Workers {
		p.workers = append(p.workers, p.spawn())
	}

	logger.Info("worker pool started",
		logging.FieldWorkers, opts.Workers,
		logging.FieldTimeout, opts.JobTimeout,
		logging.FieldTick, opts.TickInterval)

	go p.loop()
	return p, nil
}

// Submit queues job and returns its handle. It returns ErrPoolClosed once
// Close has been called.
func (p *Pool) Submit(job Job) (*Handle, error) {
	t := newTask(uuid.NewString(), job)

	select {
	case p.submitCh <- t:
		p.submitted.Add(1)
		return t.handle, nil
	case <-p.done:
		return nil, ErrPoolClosed
	}
}

// Rewrite submits job and waits for its output. The job's callbacks are
// replaced. On failure no partial output is returned.
func (p *Pool) Rewrite(ctx context.Context, job Job) ([]byte, error) {
	var buf bytes.Buffer
	job.OnChunk = func(chunk []byte) { buf.Write(chunk) }
	job.OnEnd = nil
	job.OnError = nil

	h, err := p.Submit(job)
	if err != nil {
		return nil, err
	}
	if err := h.Wait(ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats returns a snapshot of the pool. After Close it returns the final
// snapshot.
func (p *Pool) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.statsCh <- reply:
		return <-reply
	case <-p.loopDone:
		final := p.final
		p.loadCounters(&final)
		return final
	}
}

// Close fails queued and running jobs with ErrPoolClosed, stops the
// scheduling loop, and waits for every worker goroutine and pending
// callback to finish.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
	})
	<-p.loopDone
	p.workerWG.Wait()
	p.pending.Wait()
	return nil
}

func (p *Pool) loop() {
	defer close(p.loopDone)

	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case t := <-p.submitCh:
			p.queue = append(p.queue, t)
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
			p.log.Debug("job queued", logging.FieldJobID, t.id, logging.FieldQueue, len(p.queue))

		case ev := <-p.events:
			p.handle(ev)

		case now := <-ticker.C:
			p.tick(now)

		case reply := <-p.statsCh:
			reply <- p.snapshot()

		case <-p.stop:
			p.shutdown()
			return
		}
	}
}

// tick enforces timeouts, then assigns queued jobs while idle workers
// remain.
func (p *Pool) tick(now time.Time) {
	for _, w := range p.workers {
		if w.current == nil || w.terminating || now.Sub(w.assignedAt) <= p.opts.JobTimeout {
			continue
		}
		p.terminate(w)
	}

	for len(p.queue) > 0 {
		w := p.idleWorker()
		if w == nil {
			break
		}
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.assign(w, t, now)
	}

	p.metrics.QueueDepth.Set(float64(len(p.queue)))
	p.metrics.BusyWorkers.Set(float64(p.busy()))
}

func (p *Pool) idleWorker() *worker {
	for _, w := range p.workers {
		if w.current == nil && !w.terminating {
			return w
		}
	}
	return nil
}

func (p *Pool) assign(w *worker, t *task, now time.Time) {
	ctx, cancel := context.WithCancel(p.baseCtx)
	w.current = t
	w.assignedAt = now
	w.cancel = cancel

	p.log.Debug("job assigned",
		logging.FieldJobID, t.id,
		logging.FieldWorker, w.id,
		logging.FieldKind, t.job.Kind,
		logging.FieldBytes, len(t.job.Body))

	// The worker is idle, so its buffer slot is free.
	w.jobs <- assignment{ctx: ctx, task: t}
}

// terminate abandons a worker's job. The worker stays busy until its
// goroutine confirms exit.
func (p *Pool) terminate(w *worker) {
	t := w.current
	w.terminating = true
	w.cancel()

	p.log.Warn("job timed out, recycling worker",
		logging.FieldJobID, t.id,
		logging.FieldWorker, w.id,
		logging.FieldElapsed, time.Since(w.assignedAt))

	p.finishAsync(t, OutcomeTimeout, ErrJobTimeout)
}

func (p *Pool) handle(ev event) {
	idx := p.indexOf(ev.worker)
	if idx < 0 {
		return
	}
	w := p.workers[idx]

	switch ev.kind {
	case evIdle:
		if w.cancel != nil {
			w.cancel()
		}
		w.current = nil
		w.cancel = nil
		w.terminating = false

	case evExited:
		// A worker exits only after a fault it already reported to its job,
		// or after terminate abandoned the job.
		if ev.fault != nil {
			p.log.Warn("worker faulted, respawning",
				logging.FieldWorker, w.id,
				logging.FieldJobID, ev.fault.JobID,
				logging.FieldPanic, ev.fault.Value)
		}
		if w.cancel != nil {
			w.cancel()
		}

		p.workers[idx] = p.spawn()
		p.respawns.Add(1)
		p.metrics.Respawns.Inc()
		p.log.Debug("worker respawned", logging.FieldWorker, p.workers[idx].id)
	}

	p.metrics.BusyWorkers.Set(float64(p.busy()))
}

func (p *Pool) shutdown() {
	for _, t := range p.queue {
		p.finishAsync(t, OutcomeClosed, ErrPoolClosed)
	}
	p.queue = nil

	for _, w := range p.workers {
		if w.current != nil && !w.terminating {
			p.finishAsync(w.current, OutcomeClosed, ErrPoolClosed)
		}
	}

	p.final = Stats{Workers: len(p.workers)}

	p.baseCancel()
	close(p.done)

	p.metrics.QueueDepth.Set(0)
	p.metrics.BusyWorkers.Set(0)
	p.log.Info("worker pool stopped",
		logging.FieldJobsCompleted, p.completed.Load(),
		logging.FieldJobsFailed, p.failed.Load(),
		logging.FieldRespawns, p.respawns.Load())
}

// finishAsync runs finish off the scheduling goroutine, since callbacks may
// block.
func (p *Pool) finishAsync(t *task, outcome string, err error) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.finish(t, outcome, err)
	}()
}

// finish delivers a job's terminal callback and records the outcome, unless
// another path already finished the job.
func (p *Pool) finish(t *task, outcome string, err error) bool {
	return t.finish(err, func() {
		switch outcome {
		case OutcomeCompleted:
			p.completed.Add(1)
		case OutcomeTimeout:
			p.timedOut.Add(1)
			p.failed.Add(1)
		case OutcomeFault:
			p.faulted.Add(1)
			p.failed.Add(1)
		default:
			p.failed.Add(1)
		}
		p.metrics.Jobs.WithLabelValues(outcome).Inc()
		p.metrics.Duration.Observe(time.Since(t.submitted).Seconds())
	})
}

func (p *Pool) snapshot() Stats {
	s := Stats{
		Workers: len(p.workers),
		Busy:    p.busy(),
		Queued:  len(p.queue),
	}
	p.loadCounters(&s)
	return s
}

func (p *Pool) loadCounters(s *Stats) {
	s.Submitted = p.submitted.Load()
	s.Completed = p.completed.Load()
	s.Failed = p.failed.Load()
	s.TimedOut = p.timedOut.Load()
	s.Faulted = p.faulted.Load()
	s.Respawns = p.respawns.Load()
}

func (p *Pool) busy() int {
	n := 0
	for _, w := range p.workers {
		if w.current != nil || w.terminating {
			n++
		}
	}
	return n
}

func (p *Pool) indexOf(w *worker) int {
	for i, candidate := range p.workers {
		if candidate == w {
			return i
		}
	}
	return -1
}

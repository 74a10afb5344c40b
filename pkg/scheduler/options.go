package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yaklabco/passthrough/pkg/contentkind"
)

// Defaults applied by New for zero-valued options.
const (
	DefaultJobTimeout   = 30 * time.Second
	DefaultTickInterval = 100 * time.Millisecond
	DefaultChunkSize    = 32 << 10
)

// Rewriter rewrites decoded text of a given kind. *rewrite.Engine
// implements it.
type Rewriter interface {
	Rewrite(ctx context.Context, kind contentkind.Kind, text string) (string, error)
}

// Options configures a Pool.
type Options struct {
	// Rewriter performs the rewrite inside each worker. Required.
	Rewriter Rewriter

	// Workers is the pool size.
	// 0 or negative means "auto" (runtime.NumCPU()).
	Workers int

	// JobTimeout is the budget for one job, measured from assignment.
	JobTimeout time.Duration

	// TickInterval is the period of the scheduling loop that assigns queued
	// jobs and enforces timeouts.
	TickInterval time.Duration

	// ChunkSize is the size of the pieces passed to Job.OnChunk.
	ChunkSize int

	// MaxBodyBytes limits a body after Content-Encoding is removed.
	// 0 or negative disables the limit.
	MaxBodyBytes int64

	// Logger receives pool events. Defaults to logging.Default().
	Logger *log.Logger

	// Metrics receives pool metrics. Defaults to an unregistered set.
	Metrics *Metrics
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Package logging provides a structured logging wrapper around charmbracelet/log.
package logging

// Field name constants for structured logging.
// Using constants prevents typos and enables IDE autocomplete.
const (
	// Common fields.
	FieldError  = "error"
	FieldPath   = "path"
	FieldPaths  = "paths"
	FieldInput  = "input"
	FieldOutput = "output"

	// Configuration fields.
	FieldOrigin  = "origin"
	FieldWorkers = "workers"
	FieldTimeout = "timeout"
	FieldTick    = "tick"

	// Job fields.
	FieldJobID    = "job_id"
	FieldWorker   = "worker"
	FieldKind     = "kind"
	FieldEncoding = "encoding"
	FieldBytes    = "bytes"
	FieldElapsed  = "elapsed"
	FieldQueue    = "queue"
	FieldOutcome  = "outcome"
	FieldPanic    = "panic"

	// Statistics fields.
	FieldJobsCompleted = "jobs_completed"
	FieldJobsFailed    = "jobs_failed"
	FieldRespawns      = "respawns"

	// Version fields.
	FieldVersion = "version"
	FieldCommit  = "commit"
	FieldBuilt   = "built"
)

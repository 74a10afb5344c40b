package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// Exit codes for passthrough, following sysexits.
const (
	// ExitSuccess indicates every input was processed.
	ExitSuccess = 0

	// ExitJobsFailed indicates the run completed but at least one job failed.
	ExitJobsFailed = 1

	// ExitInvalidUsage indicates invalid command-line usage.
	ExitInvalidUsage = 64

	// ExitConfigError indicates configuration file errors.
	ExitConfigError = 65

	// ExitInternalError indicates an internal error.
	ExitInternalError = 70

	// ExitIOError indicates file I/O errors.
	ExitIOError = 74
)

// ErrJobsFailed is returned when one or more rewrite jobs failed. The
// failures have already been reported, so callers only map it to an exit code.
var ErrJobsFailed = errors.New("one or more rewrite jobs failed")

// exitError attaches an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error  { return &exitError{code: ExitInvalidUsage, err: err} }
func configError(err error) error { return &exitError{code: ExitConfigError, err: err} }
func ioError(err error) error     { return &exitError{code: ExitIOError, err: err} }

// positional reports argument count errors as usage errors.
func positional(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, ErrJobsFailed) {
		return ExitJobsFailed
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitInternalError
}

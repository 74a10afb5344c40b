package pretty

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/scheduler"
)

const (
	summaryDividerWidth = 40
	wordInput           = "input"
	wordInputs          = "inputs"
)

// Outcome is the result of rewriting one input.
type Outcome struct {
	Input    string
	Output   string
	Kind     contentkind.Kind
	BytesIn  int
	BytesOut int
	Elapsed  time.Duration
	Err      error
}

// RunStats summarizes a rewrite run.
type RunStats struct {
	Outcomes []Outcome
	Pool     scheduler.Stats
	Elapsed  time.Duration
}

// Counts returns how many inputs were rewritten, passed through untouched,
// and failed.
func (r RunStats) Counts() (rewritten, passed, failed int) {
	for _, o := range r.Outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Kind.Rewritable():
			rewritten++
		default:
			passed++
		}
	}
	return rewritten, passed, failed
}

// Bytes returns the total input and output sizes of successful outcomes.
func (r RunStats) Bytes() (in, out int) {
	for _, o := range r.Outcomes {
		if o.Err == nil {
			in += o.BytesIn
			out += o.BytesOut
		}
	}
	return in, out
}

// FormatSummaryOneLine formats run statistics as a single line.
// Example: "3 inputs rewritten, 1 passed through, 1 failed in 12ms".
func (s *Styles) FormatSummaryOneLine(stats RunStats) string {
	rewritten, passed, failed := stats.Counts()

	inputWord := wordInputs
	if rewritten == 1 {
		inputWord = wordInput
	}

	parts := []string{s.Success.Render(fmt.Sprintf("%d %s rewritten", rewritten, inputWord))}
	if passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed through", passed))
	}
	if failed > 0 {
		parts = append(parts, s.Failure.Render(fmt.Sprintf("%d failed", failed)))
	}

	line := strings.Join(parts, ", ")
	if stats.Elapsed > 0 {
		line += s.Dim.Render(" in " + stats.Elapsed.Round(time.Millisecond).String())
	}
	return line + "\n"
}

// FormatSummary formats run statistics as a summary block.
func (s *Styles) FormatSummary(stats RunStats) string {
	rewritten, passed, failed := stats.Counts()
	bytesIn, bytesOut := stats.Bytes()

	var builder strings.Builder

	builder.WriteString("\n")
	builder.WriteString(s.SummaryTitle.Render("Summary"))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("-", summaryDividerWidth))
	builder.WriteString("\n")

	builder.WriteString("  Inputs:            " +
		s.SummaryValue.Render(strconv.Itoa(len(stats.Outcomes))) + "\n")
	builder.WriteString("  Rewritten:         " +
		s.Success.Render(strconv.Itoa(rewritten)) + "\n")
	if passed > 0 {
		builder.WriteString("  Passed through:    " +
			s.SummaryValue.Render(strconv.Itoa(passed)) + "\n")
	}
	if failed > 0 {
		builder.WriteString("  Failed:            " +
			s.Failure.Render(strconv.Itoa(failed)) + "\n")
	}

	builder.WriteString("\n")

	builder.WriteString("  Bytes in:          " +
		s.SummaryValue.Render(strconv.Itoa(bytesIn)) + "\n")
	builder.WriteString("  Bytes out:         " +
		s.SummaryValue.Render(strconv.Itoa(bytesOut)) + "\n")

	builder.WriteString("\n")

	pool := stats.Pool
	builder.WriteString("  Workers:           " +
		s.SummaryValue.Render(strconv.Itoa(pool.Workers)) + "\n")
	if pool.TimedOut > 0 {
		builder.WriteString("    Timed out:       " +
			s.Warning.Render(strconv.FormatUint(pool.TimedOut, 10)) + "\n")
	}
	if pool.Faulted > 0 {
		builder.WriteString("    Faulted:         " +
			s.Error.Render(strconv.FormatUint(pool.Faulted, 10)) + "\n")
	}
	if pool.Respawns > 0 {
		builder.WriteString("    Respawned:       " +
			s.SummaryValue.Render(strconv.FormatUint(pool.Respawns, 10)) + "\n")
	}

	builder.WriteString("\n")

	if failed > 0 {
		builder.WriteString(s.Failure.Render("Rewrite failed for some inputs"))
	} else {
		builder.WriteString(s.Success.Render("Rewrite complete"))
	}
	builder.WriteString("\n")

	return builder.String()
}

package pretty

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Table formatting constants.
const (
	tablePadding     = 2
	tableColumnCount = 5 // INPUT, KIND, IN, OUT, STATUS
	minInputWidth    = 20
	kindWidth        = 10
	sizeWidth        = 9
	minStatusWidth   = 12
	heavySeparator   = "="
	defaultTermWidth = 100
)

// TableFormatter formats rewrite outcomes as a styled table.
type TableFormatter struct {
	styles    *Styles
	termWidth int
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(styles *Styles, termWidth int) *TableFormatter {
	if termWidth <= 0 {
		termWidth = defaultTermWidth
	}
	return &TableFormatter{
		styles:    styles,
		termWidth: termWidth,
	}
}

type columnWidths struct {
	input  int
	status int
}

// FormatTable formats every outcome of a run, one row each.
func (t *TableFormatter) FormatTable(stats RunStats) string {
	if len(stats.Outcomes) == 0 {
		return ""
	}

	widths := t.calculateColumnWidths(stats.Outcomes)

	var builder strings.Builder

	builder.WriteString(t.formatHeader(widths))
	builder.WriteString("\n")
	builder.WriteString(t.formatSeparator(widths))
	builder.WriteString("\n")

	for _, outcome := range stats.Outcomes {
		builder.WriteString(t.formatRow(outcome, widths))
		builder.WriteString("\n")
	}

	builder.WriteString(t.formatSeparator(widths))
	builder.WriteString("\n")

	return builder.String()
}

func (t *TableFormatter) calculateColumnWidths(outcomes []Outcome) columnWidths {
	widths := columnWidths{input: minInputWidth, status: minStatusWidth}

	for _, o := range outcomes {
		widths.input = max(widths.input, len(o.Input))
		widths.status = max(widths.status, len(statusText(o)))
	}

	fixed := kindWidth + 2*sizeWidth + tablePadding*tableColumnCount
	if fixed+widths.input+widths.status > t.termWidth {
		excess := fixed + widths.input + widths.status - t.termWidth
		shrinkStatus := min(excess, widths.status-minStatusWidth)
		widths.status -= shrinkStatus
		widths.input = max(minInputWidth, widths.input-(excess-shrinkStatus))
	}

	return widths
}

func (t *TableFormatter) totalWidth(widths columnWidths) int {
	return widths.input + kindWidth + 2*sizeWidth + widths.status + tablePadding*tableColumnCount
}

func (t *TableFormatter) formatHeader(widths columnWidths) string {
	header := fmt.Sprintf(" %-*s  %-*s  %*s  %*s  %-*s ",
		widths.input, "INPUT",
		kindWidth, "KIND",
		sizeWidth, "IN",
		sizeWidth, "OUT",
		widths.status, "STATUS",
	)
	return t.styles.TableHeader.Render(header)
}

func (t *TableFormatter) formatSeparator(widths columnWidths) string {
	return t.styles.TableSeparator.Render(strings.Repeat(heavySeparator, t.totalWidth(widths)))
}

func (t *TableFormatter) formatRow(o Outcome, widths columnWidths) string {
	out := "-"
	if o.Err == nil {
		out = strconv.Itoa(o.BytesOut)
	}

	content := fmt.Sprintf(" %-*s  %-*s  %*d  %*s  %-*s ",
		widths.input, truncateFilePath(o.Input, widths.input),
		kindWidth, truncateString(o.Kind.String(), kindWidth),
		sizeWidth, o.BytesIn,
		sizeWidth, out,
		widths.status, truncateString(statusText(o), widths.status),
	)

	if o.Err != nil {
		return t.styles.TableErrorRow.Render(content)
	}
	return content
}

func statusText(o Outcome) string {
	if o.Err != nil {
		return "failed: " + o.Err.Error()
	}
	if !o.Kind.Rewritable() {
		return "passed through"
	}
	return "ok " + o.Elapsed.Round(time.Millisecond).String()
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	if maxLen <= 3 {
		return str[:maxLen]
	}
	return str[:maxLen-3] + "..."
}

// truncateFilePath truncates a file path, preserving the end (filename) rather than beginning.
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[len(path)-maxLen:]
	}
	return "..." + path[len(path)-maxLen+3:]
}

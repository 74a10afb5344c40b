package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/yaklabco/passthrough/internal/configloader"
	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/internal/ui/pretty"
	"github.com/yaklabco/passthrough/pkg/config"
	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/fsutil"
	"github.com/yaklabco/passthrough/pkg/hook"
	"github.com/yaklabco/passthrough/pkg/payload"
	"github.com/yaklabco/passthrough/pkg/rewrite"
	"github.com/yaklabco/passthrough/pkg/scheduler"
	"github.com/yaklabco/passthrough/pkg/urlcodec"
)

// stdinName is the argument that selects standard input.
const stdinName = "-"

// Summary modes for the rewrite command.
const (
	summaryNone  = "none"
	summaryLine  = "line"
	summaryFull  = "full"
	summaryTable = "table"
)

type rewriteFlags struct {
	kind            string
	contentType     string
	contentEncoding string
	outDir          string
	inPlace         bool
	workers         int
	timeout         time.Duration
	origin          string
	verify          bool
	inlineStyles    bool
	noHook          bool
	summary         string
	metricsFile     string
	exclude         []string
	followSymlinks  bool
}

// rewriteInput is one file, or standard input, queued for rewriting.
type rewriteInput struct {
	path string
	// base is the directory the path is relative to under --out.
	base  string
	stdin bool
}

func (in rewriteInput) name() string {
	if in.stdin {
		return stdinName
	}
	return in.path
}

func newRewriteCommand() *cobra.Command {
	flags := &rewriteFlags{}

	cmd := &cobra.Command{
		Use:   "rewrite [files|dirs|-]",
		Short: "Rewrite files or standard input through the worker pool",
		Long:  rewriteLongDescription,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.kind, "kind", "", "content kind: html, css, js, none (default: detect)")
	cmd.Flags().StringVar(&flags.contentType, "content-type", "", "Content-Type of the inputs")
	cmd.Flags().StringVar(&flags.contentEncoding, "content-encoding", "",
		"Content-Encoding of the inputs: gzip, deflate, br, zstd")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "write outputs under this directory instead of stdout")
	cmd.Flags().BoolVarP(&flags.inPlace, "in-place", "i", false, "replace each input file with its rewrite")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "number of workers (0 = one per CPU)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-job timeout")
	cmd.Flags().StringVar(&flags.origin, "origin", "", "proxy origin URLs are rewritten to")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "check that rewritten scripts still compile")
	cmd.Flags().BoolVar(&flags.inlineStyles, "inline-styles", false, "rewrite inline <style> bodies")
	cmd.Flags().BoolVar(&flags.noHook, "no-hook", false, "do not inject the bootstrap script into HTML")
	cmd.Flags().StringVar(&flags.summary, "summary", summaryLine, "summary on stderr: none, line, full, table")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics", "", "write pool metrics in Prometheus text format to file")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "glob patterns to skip when walking directories")
	cmd.Flags().BoolVar(&flags.followSymlinks, "follow-symlinks", false, "walk symlinked directories")

	return cmd
}

const rewriteLongDescription = `Rewrite HTML, CSS and JavaScript so that every URL points at the proxy
origin, using the same worker pool a proxy runs responses through.

Inputs are files, directories (walked recursively, hidden entries and
--exclude matches skipped) or "-" for standard input. With no arguments standard input is read when it
is not a terminal. The kind of each input is taken from --kind, then from
--content-type, then from the file extension and content. Compressed inputs
are decoded first; rewritten output is always uncompressed UTF-8, while
inputs of kind "none" are copied unchanged.

Examples:
  passthrough rewrite index.html                      Rewrite to stdout
  passthrough rewrite --out dist/ site/               Mirror a tree into dist/
  passthrough rewrite --in-place site/                Rewrite files in place
  curl -s https://example.com | passthrough rewrite --kind html
  passthrough rewrite --content-encoding gzip page.html.gz --kind html`

// overrides returns the configuration set by flags given on the command line.
func (f *rewriteFlags) overrides(cmd *cobra.Command) *configloader.Overrides {
	changed := cmd.Flags().Changed
	o := &configloader.Overrides{}

	if changed("workers") {
		o.Workers = &f.workers
	}
	if changed("timeout") {
		o.JobTimeout = &f.timeout
	}
	if changed("origin") {
		o.Origin = &f.origin
	}
	if changed("verify") {
		o.VerifyScripts = &f.verify
	}
	if changed("inline-styles") {
		o.InlineStyles = &f.inlineStyles
	}
	if changed("no-hook") {
		inject := !f.noHook
		o.InjectHook = &inject
	}
	return o
}

func (f *rewriteFlags) validate(args []string) (contentkind.Kind, error) {
	switch f.summary {
	case summaryNone, summaryLine, summaryFull, summaryTable:
	default:
		return "", usageError(fmt.Errorf("invalid summary %q: must be none, line, full or table", f.summary))
	}

	var kind contentkind.Kind
	if f.kind != "" {
		parsed, err := contentkind.Parse(f.kind)
		if err != nil {
			return "", usageError(err)
		}
		kind = parsed
	}

	if f.outDir != "" && f.inPlace {
		return "", usageError(errors.New("--out and --in-place cannot be used together"))
	}
	if f.outDir != "" || f.inPlace {
		for _, arg := range args {
			if arg == stdinName {
				return "", usageError(errors.New("--out and --in-place need file inputs, not stdin"))
			}
		}
		if len(args) == 0 {
			return "", usageError(errors.New("--out and --in-place need file inputs"))
		}
	}
	return kind, nil
}

func runRewrite(cmd *cobra.Command, args []string, flags *rewriteFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	forced, err := flags.validate(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, flags.overrides(cmd))
	if err != nil {
		return err
	}

	inputs, err := collectInputs(ctx, args, cmd.InOrStdin(), fsutil.WalkOptions{
		Exclude:        flags.exclude,
		FollowSymlinks: flags.followSymlinks,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	pool, err := newPool(cfg, registry)
	if err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	run := &rewriteRun{
		cfg:      cfg,
		flags:    flags,
		forced:   forced,
		pool:     pool,
		stdin:    cmd.InOrStdin(),
		outcomes: make([]pretty.Outcome, len(inputs)),
		outputs:  make([][]byte, len(inputs)),
	}
	run.process(ctx, inputs)

	stats := pool.Stats()
	if err := pool.Close(); err != nil {
		return fmt.Errorf("close worker pool: %w", err)
	}

	if flags.outDir == "" && !flags.inPlace {
		if err := writeOrdered(cmd.OutOrStdout(), run.outputs); err != nil {
			return ioError(fmt.Errorf("write output: %w", err))
		}
	}

	if flags.metricsFile != "" {
		if err := writeMetrics(ctx, flags.metricsFile, registry); err != nil {
			return ioError(err)
		}
	}

	runStats := pretty.RunStats{Outcomes: run.outcomes, Pool: stats, Elapsed: time.Since(start)}
	printSummary(cmd, flags.summary, runStats)

	if _, _, failed := runStats.Counts(); failed > 0 {
		return ErrJobsFailed
	}
	return nil
}

// newPool builds the rewrite engine described by cfg and starts a worker
// pool around it.
func newPool(cfg *config.Config, registry prometheus.Registerer) (*scheduler.Pool, error) {
	codec := urlcodec.New(cfg.Proxy.Origin)

	var hookScript string
	if cfg.Rewrite.InjectHook {
		hookScript = hook.Script(hook.Options{Origin: codec.Origin(), Prefix: codec.Prefix()})
	}

	engine := rewrite.New(rewrite.Options{
		Encoder:            codec,
		Hook:               hookScript,
		InlineStyles:       cfg.Rewrite.InlineStyles,
		VerifyScripts:      cfg.Rewrite.VerifyScripts,
		SkipIntegerIndexes: cfg.Rewrite.SkipIntegerIndexes,
	})

	return scheduler.New(scheduler.Options{
		Rewriter:     engine,
		Workers:      cfg.Workers.Count,
		JobTimeout:   cfg.Workers.JobTimeout.Std(),
		TickInterval: cfg.Workers.TickInterval.Std(),
		ChunkSize:    cfg.Workers.ChunkSize,
		MaxBodyBytes: cfg.Rewrite.MaxBodyBytes,
		Logger:       logging.Default(),
		Metrics:      scheduler.NewMetrics(registry),
	})
}

// collectInputs expands args into files, walking directories with walkOpts.
func collectInputs(
	ctx context.Context, args []string, stdin io.Reader, walkOpts fsutil.WalkOptions,
) ([]rewriteInput, error) {
	if len(args) == 0 {
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, usageError(errors.New("no inputs: pass files, directories or pipe content to stdin"))
		}
		return []rewriteInput{{stdin: true}}, nil
	}

	var inputs []rewriteInput
	seenStdin := false
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if arg == stdinName {
			if seenStdin {
				return nil, usageError(errors.New("stdin given more than once"))
			}
			seenStdin = true
			inputs = append(inputs, rewriteInput{stdin: true})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, ioError(fmt.Errorf("stat input: %w", err))
		}
		if !info.IsDir() {
			inputs = append(inputs, rewriteInput{path: arg, base: filepath.Dir(arg)})
			continue
		}

		files, err := fsutil.Walk(ctx, arg, walkOpts)
		if errors.Is(err, fsutil.ErrBadPattern) {
			return nil, usageError(err)
		}
		if err != nil {
			return nil, ioError(err)
		}
		for _, file := range files {
			inputs = append(inputs, rewriteInput{path: file, base: arg})
		}
	}
	return inputs, nil
}

// rewriteRun carries the state shared by the goroutines of one run. Each
// goroutine writes only its own index of outcomes and outputs.
type rewriteRun struct {
	cfg    *config.Config
	flags  *rewriteFlags
	forced contentkind.Kind
	pool   *scheduler.Pool

	stdin io.Reader

	outcomes []pretty.Outcome
	outputs  [][]byte
}

// process runs every input through the pool. Reading ahead is bounded to
// twice the pool size so large trees are not held in memory at once.
func (r *rewriteRun) process(ctx context.Context, inputs []rewriteInput) {
	workers := r.cfg.Workers.Count
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var group errgroup.Group
	group.SetLimit(2 * workers)
	for i, in := range inputs {
		group.Go(func() error {
			r.outcomes[i] = r.one(ctx, i, in)
			return nil
		})
	}
	_ = group.Wait()
}

func (r *rewriteRun) one(ctx context.Context, index int, in rewriteInput) pretty.Outcome {
	logger := logging.Default().With(logging.FieldInput, in.name())
	start := time.Now()
	outcome := pretty.Outcome{Input: in.name()}

	body, snapshot, err := r.read(ctx, in)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.BytesIn = len(body)
	outcome.Kind = r.resolveKind(in, body)

	out, err := r.pool.Rewrite(ctx, scheduler.Job{
		Kind:            outcome.Kind,
		ContentType:     r.flags.contentType,
		ContentEncoding: r.flags.contentEncoding,
		Body:            body,
	})
	if err != nil {
		logger.Debug("rewrite failed", logging.FieldError, err)
		outcome.Err = err
		return outcome
	}
	outcome.BytesOut = len(out)

	outcome.Output, err = r.write(ctx, index, in, snapshot, out)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Elapsed = time.Since(start)
	logger.Debug("rewrote input",
		logging.FieldKind, outcome.Kind,
		logging.FieldBytes, outcome.BytesOut,
		logging.FieldElapsed, outcome.Elapsed)
	return outcome
}

func (r *rewriteRun) read(ctx context.Context, in rewriteInput) ([]byte, *fsutil.Snapshot, error) {
	if !in.stdin {
		return fsutil.ReadFile(ctx, in.path)
	}

	body, err := io.ReadAll(r.stdin)
	if err != nil {
		return nil, nil, fmt.Errorf("read stdin: %w", err)
	}
	return body, nil, nil
}

// resolveKind decides the kind in the CLI, so the summary can report it.
// The worker repeats the decode; a body that fails to decode is left for
// the worker to fail.
func (r *rewriteRun) resolveKind(in rewriteInput, body []byte) contentkind.Kind {
	if r.forced != "" {
		return r.forced
	}
	if !contentkind.Generic(r.flags.contentType) {
		return contentkind.Classify(r.flags.contentType)
	}

	decoded, err := payload.Decode(r.flags.contentEncoding, body, r.cfg.Rewrite.MaxBodyBytes)
	if err != nil {
		return ""
	}
	if in.stdin {
		return contentkind.Sniff(decoded)
	}
	return contentkind.ForPath(in.path, decoded)
}

// write stores out according to the output mode and returns where it went.
func (r *rewriteRun) write(
	ctx context.Context, index int, in rewriteInput, snapshot *fsutil.Snapshot, out []byte,
) (string, error) {
	switch {
	case r.flags.inPlace:
		written, err := snapshot.Replace(ctx, out)
		if err != nil {
			return "", err
		}
		if !written {
			return "", nil
		}
		return in.path, nil

	case r.flags.outDir != "":
		target, err := fsutil.OutputPath(r.flags.outDir, in.base, in.path)
		if err != nil {
			return "", err
		}
		mode := fsutil.DefaultFileMode
		if snapshot != nil {
			mode = snapshot.Mode
		}
		if err := fsutil.WriteAtomic(ctx, target, out, mode); err != nil {
			return "", err
		}
		return target, nil

	default:
		r.outputs[index] = out
		return stdinName, nil
	}
}

func writeOrdered(w io.Writer, outputs [][]byte) error {
	for _, out := range outputs {
		if out == nil {
			continue
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

// writeMetrics dumps every metric family in registry to path.
func writeMetrics(ctx context.Context, path string, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var b strings.Builder
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&b, family); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := fsutil.WriteAtomic(ctx, path, []byte(b.String()), 0); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, mode string, stats pretty.RunStats) {
	if mode == summaryNone {
		return
	}

	w := cmd.ErrOrStderr()
	colorMode, err := cmd.Flags().GetString("color")
	if err != nil {
		colorMode = "auto"
	}
	styles := pretty.NewStyles(pretty.IsColorEnabled(colorMode, w))

	switch mode {
	case summaryLine:
		fmt.Fprint(w, styles.FormatSummaryOneLine(stats))
	case summaryFull:
		fmt.Fprint(w, styles.FormatSummary(stats))
	case summaryTable:
		fmt.Fprint(w, pretty.NewTableFormatter(styles, terminalWidth(w)).FormatTable(stats))
		fmt.Fprint(w, styles.FormatSummary(stats))
	}

	for _, o := range stats.Outcomes {
		if o.Err != nil && mode != summaryTable {
			fmt.Fprintf(w, "%s %s: %v\n", styles.Error.Render("error"), styles.FilePath.Render(o.Input), o.Err)
		}
	}
}

// terminalWidth returns the width of w when it is a terminal, or 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

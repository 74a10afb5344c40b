// Package rewrite rewrites URL-bearing references in HTML, CSS, and
// JavaScript so a browser keeps routing through the proxy.
//
// Each rewriter scans the document with a textcursor.Cursor, records
// replacements in a patch.List, and flattens the list once at the end.
// Scanning never fails on malformed input: a recognizer that does not match
// restores the cursor and the scanner advances a single byte.
package rewrite

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/hook"
	"github.com/yaklabco/passthrough/pkg/patch"
)

// URLEncoder maps a destination URL to a proxy reference. It must return
// its input unchanged when the URL should not be proxied.
type URLEncoder interface {
	Encode(raw string) string
}

// Options configures an Engine.
type Options struct {
	// Encoder rewrites attribute and stylesheet URLs. Required.
	Encoder URLEncoder

	// Hook is inserted once into every HTML document. Empty disables
	// injection.
	Hook string

	// Guard is the runtime function wrapped around flagged accesses.
	// Defaults to hook.Guard.
	Guard string

	// InlineStyles runs <style> bodies through the CSS rewriter.
	InlineStyles bool

	// VerifyScripts compiles each rewritten top-level script and keeps the
	// original when only the rewritten form fails to compile.
	VerifyScripts bool

	// SkipIntegerIndexes exempts computed accesses whose index is a plain
	// integer, such as a[0], from wrapping.
	SkipIntegerIndexes bool
}

// Engine holds immutable rewriting settings and is safe for concurrent use.
type Engine struct {
	opts Options
}

// New returns an engine for opts.
func New(opts Options) *Engine {
	if opts.Guard == "" {
		opts.Guard = hook.Guard
	}
	return &Engine{opts: opts}
}

// Rewrite dispatches on kind. KindNone returns text unchanged. The only
// error is ctx's, when it is cancelled before the rewrite finishes.
func (e *Engine) Rewrite(ctx context.Context, kind contentkind.Kind, text string) (string, error) {
	switch kind {
	case contentkind.KindHTML:
		return e.HTML(ctx, text)
	case contentkind.KindCSS:
		return e.CSS(ctx, text)
	case contentkind.KindJavaScript:
		return e.JavaScript(ctx, text)
	default:
		return text, nil
	}
}

// HTML rewrites an HTML document.
func (e *Engine) HTML(ctx context.Context, text string) (out string, err error) {
	defer recoverInterrupt(&err)
	s := newScan(ctx, e, text)
	return newHTMLRewriter(s).rewrite(), nil
}

// CSS rewrites a stylesheet.
func (e *Engine) CSS(ctx context.Context, text string) (out string, err error) {
	defer recoverInterrupt(&err)
	s := newScan(ctx, e, text)
	return newCSSRewriter(s).rewrite(), nil
}

// JavaScript rewrites a script.
func (e *Engine) JavaScript(ctx context.Context, text string) (out string, err error) {
	defer recoverInterrupt(&err)
	s := newScan(ctx, e, text)
	return e.verified(text, newJSRewriter(s).rewrite()), nil
}

// verified returns rewritten unless script verification is on and the
// rewrite turned a compilable script into one that does not compile.
func (e *Engine) verified(original, rewritten string) string {
	if !e.opts.VerifyScripts || rewritten == original {
		return rewritten
	}
	if _, err := goja.Compile("", rewritten, false); err == nil {
		return rewritten
	}
	if _, err := goja.Compile("", original, false); err != nil {
		// Neither compiles, most likely syntax goja does not know.
		return rewritten
	}
	return original
}

// interrupt unwinds a scan when its context is cancelled.
type interrupt struct {
	err error
}

func recoverInterrupt(err *error) {
	if r := recover(); r != nil {
		stop, ok := r.(interrupt)
		if !ok {
			panic(r)
		}
		*err = stop.err
	}
}

// checkEvery is how many scan steps pass between context checks.
const checkEvery = 1024

// scan is the state shared by a document rewrite and every nested rewrite
// it spawns: the engine settings, the context, and a step counter.
type scan struct {
	ctx   context.Context
	eng   *Engine
	input string
	steps *int
}

func newScan(ctx context.Context, eng *Engine, input string) *scan {
	return &scan{ctx: ctx, eng: eng, input: input, steps: new(int)}
}

// tick counts a scan step and aborts the scan once the context is done.
func (s *scan) tick() {
	*s.steps++
	if *s.steps%checkEvery != 0 {
		return
	}
	if err := s.ctx.Err(); err != nil {
		panic(interrupt{err: err})
	}
}

// child returns a scan over a different text that shares this scan's
// context and step counter.
func (s *scan) child(text string) *scan {
	return &scan{ctx: s.ctx, eng: s.eng, input: text, steps: s.steps}
}

// flatten applies patches to the input. Patches that overlap an earlier
// one are dropped, leaving that region as the earlier patch wrote it.
func flatten(input string, patches *patch.List) string {
	out, _, err := patches.Apply(input)
	if err != nil {
		panic(fmt.Sprintf("rewrite: patch outside document: %v", err))
	}
	return out
}

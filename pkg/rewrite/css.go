package rewrite

import (
	"github.com/yaklabco/passthrough/pkg/patch"
	"github.com/yaklabco/passthrough/pkg/textcursor"
)

//nolint:gochecknoglobals // read-only match options
var (
	matchFold = textcursor.MatchOptions{IgnoreCase: true}
	matchWS   = textcursor.MatchOptions{SkipWS: true}
)

type cssRewriter struct {
	s       *scan
	c       *textcursor.Cursor
	patches *patch.List
}

func newCSSRewriter(s *scan) *cssRewriter {
	return &cssRewriter{s: s, c: textcursor.New(s.input), patches: patch.NewList()}
}

func (r *cssRewriter) rewrite() string {
	for !r.c.AtEnd() {
		r.s.tick()
		start := r.c.Pos()

		switch {
		case r.skipComment():
		case r.expectURL():
		case r.expectImport():
		case r.skipString():
		}

		if r.c.Pos() == start {
			r.c.Next()
		}
	}
	return flatten(r.s.input, r.patches)
}

func (r *cssRewriter) skipComment() bool {
	_, ok := r.c.ExpectString("/*", "*/", false, false)
	return ok
}

func (r *cssRewriter) skipString() bool {
	if _, ok := r.c.ExpectString(`"`, `"`, true, false); ok {
		return true
	}
	_, ok := r.c.ExpectString(`'`, `'`, true, false)
	return ok
}

// expectURL matches url( payload ) and patches the payload.
func (r *cssRewriter) expectURL() bool {
	c := r.c
	if isCSSNameByte(c.ByteAt(c.Pos() - 1)) {
		return false
	}

	c.Save()
	if !c.ExpectPattern(matchFold, "url") || !c.ExpectPattern(matchWS, "(") {
		c.Restore()
		return false
	}

	payload, quoted := r.expectQuoted()
	if !quoted {
		c.SkipWS()
		payload = c.ExpectUntil(func(b byte) bool { return b == ')' || textcursor.IsSpace(b) })
	}

	// Whatever trails the payload, the function must close.
	c.ExpectUntil(func(b byte) bool { return b == ')' })
	if c.AtEnd() {
		c.Restore()
		return false
	}
	c.Next()
	c.Pop()

	r.rewriteURL(payload)
	return true
}

// expectImport matches @import followed by url(...) or a quoted string.
func (r *cssRewriter) expectImport() bool {
	c := r.c
	c.Save()
	if !c.ExpectPattern(matchFold, "@import") {
		c.Restore()
		return false
	}

	c.SkipWS()
	if r.expectURL() {
		c.Pop()
		return true
	}
	if payload, ok := r.expectQuoted(); ok {
		c.Pop()
		r.rewriteURL(payload)
		return true
	}

	c.Restore()
	return false
}

func (r *cssRewriter) expectQuoted() (textcursor.Span, bool) {
	if span, ok := r.c.ExpectString(`"`, `"`, true, true); ok {
		return span, true
	}
	return r.c.ExpectString(`'`, `'`, true, true)
}

// rewriteURL encodes the payload, keeping any surrounding quotes.
func (r *cssRewriter) rewriteURL(payload textcursor.Span) {
	text := payload.Text()
	quote := ""
	inner := text
	if n := len(text); n >= 2 && (text[0] == '"' || text[0] == '\'') && text[n-1] == text[0] {
		quote = text[:1]
		inner = text[1 : n-1]
	}

	encoded := r.s.eng.opts.Encoder.Encode(inner)
	if encoded == inner {
		return
	}
	r.patches.Replace(payload.From, payload.To, quote+encoded+quote)
}

func isCSSNameByte(b byte) bool {
	return b == '-' || b == '_' || b >= 0x80 || isAlnum(b)
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

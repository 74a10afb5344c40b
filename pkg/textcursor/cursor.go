// Package textcursor provides a backtracking cursor over an immutable text
// buffer. Recognizers built on it save the current offset before trying a
// match and either commit (Pop) or roll back (Restore), so a failed attempt
// never leaves the cursor moved.
package textcursor

import "strings"

// MatchOptions controls how ExpectPattern compares tokens.
type MatchOptions struct {
	// SkipWS skips whitespace before every token.
	SkipWS bool
	// IgnoreCase compares ASCII letters case-insensitively.
	IgnoreCase bool
}

// Cursor is a position into an immutable string plus a stack of saved
// positions. A Cursor is not safe for concurrent use.
type Cursor struct {
	input string
	pos   int
	saved []int
}

// New returns a cursor positioned at the start of input.
func New(input string) *Cursor {
	return &Cursor{input: input, saved: make([]int, 0, 16)}
}

// Input returns the whole buffer.
func (c *Cursor) Input() string { return c.input }

// Len returns the buffer length in bytes.
func (c *Cursor) Len() int { return len(c.input) }

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// AtEnd reports whether the cursor has consumed the whole buffer.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.input) }

// Peek returns the byte at the current offset, or 0 at end of input.
func (c *Cursor) Peek() byte {
	return c.ByteAt(c.pos)
}

// ByteAt returns the byte at absolute offset i, or 0 when i is out of range.
func (c *Cursor) ByteAt(i int) byte {
	if i < 0 || i >= len(c.input) {
		return 0
	}
	return c.input[i]
}

// Next advances one byte. It is a no-op at end of input.
func (c *Cursor) Next() {
	if c.pos < len(c.input) {
		c.pos++
	}
}

// Advance moves forward n bytes, stopping at end of input.
func (c *Cursor) Advance(n int) {
	c.pos = min(c.pos+n, len(c.input))
}

// SkipTo moves forward to pos. Offsets behind the cursor are ignored; only
// Restore moves backward.
func (c *Cursor) SkipTo(pos int) {
	if pos > c.pos {
		c.pos = min(pos, len(c.input))
	}
}

// Save pushes the current offset onto the backtrack stack.
func (c *Cursor) Save() {
	c.saved = append(c.saved, c.pos)
}

// Restore pops the most recent saved offset and moves back to it.
func (c *Cursor) Restore() {
	n := len(c.saved)
	if n == 0 {
		panic("textcursor: Restore without matching Save")
	}
	c.pos = c.saved[n-1]
	c.saved = c.saved[:n-1]
}

// Pop discards the most recent saved offset without moving.
func (c *Cursor) Pop() {
	n := len(c.saved)
	if n == 0 {
		panic("textcursor: Pop without matching Save")
	}
	c.saved = c.saved[:n-1]
}

// Depth returns the number of saved offsets on the stack.
func (c *Cursor) Depth() int { return len(c.saved) }

// Span returns a span over [from, to) of this cursor's buffer.
func (c *Cursor) Span(from, to int) Span {
	from = max(0, min(from, len(c.input)))
	to = max(from, min(to, len(c.input)))
	return Span{From: from, To: to, src: c.input}
}

// From returns the span from offset from up to the current offset.
func (c *Cursor) From(from int) Span {
	return c.Span(from, c.pos)
}

// HasPrefix reports whether the remaining input starts with tok.
func (c *Cursor) HasPrefix(tok string, ignoreCase bool) bool {
	rest := c.input[c.pos:]
	if len(rest) < len(tok) {
		return false
	}
	if ignoreCase {
		return strings.EqualFold(rest[:len(tok)], tok)
	}
	return rest[:len(tok)] == tok
}

// SkipWS consumes whitespace and returns the skipped span.
func (c *Cursor) SkipWS() Span {
	return c.ExpectUntil(func(b byte) bool { return !IsSpace(b) })
}

// ExpectUntil consumes bytes until stop reports true or input ends and
// returns the consumed span, which may be empty. It never fails.
func (c *Cursor) ExpectUntil(stop func(b byte) bool) Span {
	start := c.pos
	for c.pos < len(c.input) && !stop(c.input[c.pos]) {
		c.pos++
	}
	return c.From(start)
}

// ExpectPattern matches tokens in sequence. On failure the cursor is left
// where it started.
func (c *Cursor) ExpectPattern(opts MatchOptions, tokens ...string) bool {
	c.Save()
	for _, tok := range tokens {
		if opts.SkipWS {
			c.SkipWS()
		}
		if !c.HasPrefix(tok, opts.IgnoreCase) {
			c.Restore()
			return false
		}
		c.pos += len(tok)
	}
	c.Pop()
	return true
}

// ExpectUntilPattern scans forward for the token sequence. On success it
// returns the span preceding the match and leaves the cursor after it.
func (c *Cursor) ExpectUntilPattern(opts MatchOptions, tokens ...string) (Span, bool) {
	c.Save()
	start := c.pos
	for c.pos < len(c.input) {
		at := c.pos
		if c.ExpectPattern(opts, tokens...) {
			c.Pop()
			return c.Span(start, at), true
		}
		c.pos++
	}
	c.Restore()
	return Span{}, false
}

// ExpectString matches a literal opened by open and closed by close. With
// escape set a backslash protects the following byte. The returned span
// includes both delimiters.
func (c *Cursor) ExpectString(open, closing string, escape, skipLeadingWS bool) (Span, bool) {
	c.Save()
	if skipLeadingWS {
		c.SkipWS()
	}
	start := c.pos
	if !c.HasPrefix(open, false) {
		c.Restore()
		return Span{}, false
	}
	c.pos += len(open)
	for c.pos < len(c.input) {
		if escape && c.input[c.pos] == '\\' {
			c.pos += 2
			continue
		}
		if c.HasPrefix(closing, false) {
			c.pos += len(closing)
			c.Pop()
			return c.From(start), true
		}
		c.pos++
	}
	c.Restore()
	return Span{}, false
}

// ExpectNested matches a balanced region delimited by open and close,
// optionally after whitespace. skip is offered every position inside the
// region first so the caller can consume quoted or commented text as a
// unit; it must leave the cursor unmoved when it returns false. The
// returned span is the region's interior.
func (c *Cursor) ExpectNested(open, closing string, skip func() bool) (Span, bool) {
	c.Save()
	c.SkipWS()
	if !c.HasPrefix(open, false) {
		c.Restore()
		return Span{}, false
	}
	c.pos += len(open)
	start := c.pos
	depth := 1
	for c.pos < len(c.input) {
		if skip != nil && skip() {
			continue
		}
		switch {
		case c.HasPrefix(closing, false):
			depth--
			if depth == 0 {
				inner := c.From(start)
				c.pos += len(closing)
				c.Pop()
				return inner, true
			}
			c.pos += len(closing)
		case c.HasPrefix(open, false):
			depth++
			c.pos += len(open)
		default:
			c.pos++
		}
	}
	c.Restore()
	return Span{}, false
}

// PrevNonSpace returns the nearest non-whitespace byte before offset pos and
// its index, or (0, -1) when there is none.
func (c *Cursor) PrevNonSpace(pos int) (byte, int) {
	for i := min(pos, len(c.input)) - 1; i >= 0; i-- {
		if !IsSpace(c.input[i]) {
			return c.input[i], i
		}
	}
	return 0, -1
}

// IsSpace reports whether b is ASCII whitespace.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

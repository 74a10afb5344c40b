package textcursor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/textcursor"
)

// unmoved asserts that a failed recognizer left the cursor exactly where it
// was, including the saved-offset stack.
func unmoved(t *testing.T, c *textcursor.Cursor, ok bool, fn func() bool) {
	t.Helper()
	pos, depth := c.Pos(), c.Depth()
	got := fn()
	require.Equal(t, ok, got)
	if !got {
		assert.Equal(t, pos, c.Pos(), "failed match moved the cursor")
	}
	assert.Equal(t, depth, c.Depth(), "saved stack not balanced")
}

func TestSaveRestorePop(t *testing.T) {
	t.Parallel()

	c := textcursor.New("abcdef")
	c.Save()
	c.Advance(3)
	c.Save()
	c.Advance(2)
	assert.Equal(t, 2, c.Depth())

	c.Restore()
	assert.Equal(t, 3, c.Pos())
	c.Pop()
	assert.Equal(t, 3, c.Pos())
	assert.Equal(t, 0, c.Depth())

	assert.Panics(t, func() { c.Restore() })
	assert.Panics(t, func() { c.Pop() })
}

func TestSkipToIsForwardOnly(t *testing.T) {
	t.Parallel()

	c := textcursor.New("abcdef")
	c.SkipTo(4)
	c.SkipTo(1)
	assert.Equal(t, 4, c.Pos())
	c.SkipTo(100)
	assert.True(t, c.AtEnd())
}

func TestExpectPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		opts    textcursor.MatchOptions
		tokens  []string
		ok      bool
		wantPos int
	}{
		{"single token", "url(x)", textcursor.MatchOptions{}, []string{"url"}, true, 3},
		{"sequence with whitespace", "url  (x)", textcursor.MatchOptions{SkipWS: true}, []string{"url", "("}, true, 6},
		{"whitespace not skipped", "url  (x)", textcursor.MatchOptions{}, []string{"url", "("}, false, 0},
		{"ignore case", "@IMPORT x", textcursor.MatchOptions{IgnoreCase: true}, []string{"@import"}, true, 7},
		{"case mismatch", "@IMPORT x", textcursor.MatchOptions{}, []string{"@import"}, false, 0},
		{"token past end", "ur", textcursor.MatchOptions{}, []string{"url"}, false, 0},
		{"partial sequence restores", "url x", textcursor.MatchOptions{SkipWS: true}, []string{"url", "("}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := textcursor.New(tt.input)
			unmoved(t, c, tt.ok, func() bool { return c.ExpectPattern(tt.opts, tt.tokens...) })
			assert.Equal(t, tt.wantPos, c.Pos())
		})
	}
}

func TestExpectUntil(t *testing.T) {
	t.Parallel()

	c := textcursor.New("abc def")
	span := c.ExpectUntil(textcursor.IsSpace)
	assert.Equal(t, "abc", span.Text())

	empty := c.ExpectUntil(textcursor.IsSpace)
	assert.True(t, empty.Empty())

	c.Next()
	rest := c.ExpectUntil(textcursor.IsSpace)
	assert.Equal(t, "def", rest.Text())
	assert.True(t, c.AtEnd())
}

func TestExpectUntilPattern(t *testing.T) {
	t.Parallel()

	c := textcursor.New("<!-- note -->after")
	c.Advance(4)
	span, ok := c.ExpectUntilPattern(textcursor.MatchOptions{}, "-->")
	require.True(t, ok)
	assert.Equal(t, " note ", span.Text())
	assert.Equal(t, len("<!-- note -->"), c.Pos())

	unterminated := textcursor.New("<!-- never closed")
	unmoved(t, unterminated, false, func() bool {
		_, ok := unterminated.ExpectUntilPattern(textcursor.MatchOptions{}, "-->")
		return ok
	})
}

func TestExpectString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		open   string
		close  string
		escape bool
		skipWS bool
		want   string
		ok     bool
	}{
		{"double quoted", `"abc" rest`, `"`, `"`, true, false, `"abc"`, true},
		{"escaped quote", `"a\"b" rest`, `"`, `"`, true, false, `"a\"b"`, true},
		{"escape disabled", `"a\"b" rest`, `"`, `"`, false, false, `"a\"`, true},
		{"leading whitespace", `   'x'`, `'`, `'`, true, true, `'x'`, true},
		{"leading whitespace not allowed", `   'x'`, `'`, `'`, true, false, "", false},
		{"unterminated", `"abc`, `"`, `"`, true, false, "", false},
		{"escape at end", `"abc\`, `"`, `"`, true, false, "", false},
		{"multi byte delimiters", `/* c */x`, "/*", "*/", false, false, "/* c */", true},
		{"wrong opener", `'abc'`, `"`, `"`, true, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := textcursor.New(tt.input)
			var span textcursor.Span
			unmoved(t, c, tt.ok, func() bool {
				var ok bool
				span, ok = c.ExpectString(tt.open, tt.close, tt.escape, tt.skipWS)
				return ok
			})
			if tt.ok {
				assert.Equal(t, tt.want, span.Text())
				assert.Equal(t, span.To, c.Pos())
			}
		})
	}
}

func TestExpectNested(t *testing.T) {
	t.Parallel()

	skipQuoted := func(c *textcursor.Cursor) func() bool {
		return func() bool {
			_, ok := c.ExpectString(`"`, `"`, true, false)
			return ok
		}
	}

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"flat", "(a, b) tail", "a, b", true},
		{"nested", "(f(g(x)), y)", "f(g(x)), y", true},
		{"leading whitespace", "  (x)", "x", true},
		{"quoted closer", `(")" + x)`, `")" + x`, true},
		{"unbalanced", "(f(x)", "", false},
		{"no opener", "x(y)", "", false},
		{"empty", "()", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := textcursor.New(tt.input)
			var span textcursor.Span
			unmoved(t, c, tt.ok, func() bool {
				var ok bool
				span, ok = c.ExpectNested("(", ")", skipQuoted(c))
				return ok
			})
			if tt.ok {
				assert.Equal(t, tt.want, span.Text())
			}
		})
	}
}

func TestPrevNonSpace(t *testing.T) {
	t.Parallel()

	c := textcursor.New("a ) \n\t b")
	b, idx := c.PrevNonSpace(7)
	assert.Equal(t, byte(')'), b)
	assert.Equal(t, 2, idx)

	b, idx = c.PrevNonSpace(0)
	assert.Equal(t, byte(0), b)
	assert.Equal(t, -1, idx)
}

func TestSpan(t *testing.T) {
	t.Parallel()

	c := textcursor.New(`"quoted"`)
	span := c.Span(0, 8)
	assert.Equal(t, `"quoted"`, span.Text())
	assert.Equal(t, "quoted", span.Inner(1).Text())
	assert.True(t, c.Span(0, 1).Inner(1).Empty())
	assert.Equal(t, "[0:8]", span.String())

	clamped := c.Span(-4, 100)
	assert.Equal(t, 0, clamped.From)
	assert.Equal(t, 8, clamped.To)
}

func FuzzCursor(f *testing.F) {
	f.Add(`url("a\"b") (x(y)) "open`)
	f.Add(`((("`)
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		c := textcursor.New(input)
		for !c.AtEnd() {
			pos := c.Pos()
			if _, ok := c.ExpectString(`"`, `"`, true, true); !ok && c.Pos() != pos {
				t.Fatalf("ExpectString moved cursor on failure at %d", pos)
			}
			if _, ok := c.ExpectNested("(", ")", nil); !ok && c.Pos() != pos {
				t.Fatalf("ExpectNested moved cursor on failure at %d", pos)
			}
			if c.Depth() != 0 {
				t.Fatalf("unbalanced stack at %d", pos)
			}
			if c.Pos() == pos {
				c.Next()
			}
		}
	})
}

package rewrite

import (
	"strings"

	"github.com/yaklabco/passthrough/pkg/patch"
	"github.com/yaklabco/passthrough/pkg/textcursor"
)

// sensitiveNames are matched as lower-case substrings of property names.
//
//nolint:gochecknoglobals // read-only tables
var (
	sensitiveNames = []string{
		"href", "location", "hostname", "host", "pathname", "protocol",
		"reload", "replace", "pushstate", "replacestate",
	}

	reservedWords = toSet(
		"break", "case", "catch", "class", "const", "continue", "debugger", "default",
		"delete", "do", "else", "export", "extends", "false", "finally", "for",
		"function", "if", "import", "in", "instanceof", "new", "null", "return",
		"super", "switch", "throw", "true", "try", "typeof", "var", "void", "while",
		"with", "let", "static", "yield",
	)

	// Words after which a slash starts a regular expression, not a division.
	regexKeywords = toSet(
		"return", "typeof", "case", "do", "else", "in", "instanceof", "new",
		"delete", "void", "throw", "yield", "await", "of",
	)

	// Longest first so "==" is never taken for "=".
	assignmentOperators = []string{
		">>>=", "**=", "<<=", ">>=", "&&=", "||=", "??=",
		"+=", "-=", "*=", "/=", "%=", "&=", "^=", "|=", "++", "--", "=",
	}

	// Parens after these words belong to the statement, not a group.
	statementKeywords = toSet("if", "while", "for", "switch", "with", "catch")

	// A chain preceded by one of these continues a larger expression or
	// cannot take a call in its place.
	bannedPrefixes = []string{"++", "--", "new", "delete", ".", "]", ")", "}"}
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// access is one .name or [expr] step of a chain, with any call on it.
type access struct {
	span        textcursor.Span
	replacement string
	suspicious  bool
	// fallbacks are computed-index and argument spans that still need
	// rewriting when the chain itself is left alone.
	fallbacks []textcursor.Span
	// closedGroup is the offset of the outermost grouping paren this access
	// closed before its call, or -1.
	closedGroup int
}

// parenGroup is an open grouping paren. empty stays true until something
// other than whitespace, comments, or nested parens appears inside it.
type parenGroup struct {
	open  int
	empty bool
}

type jsRewriter struct {
	s       *scan
	c       *textcursor.Cursor
	patches *patch.List
	groups  []parenGroup
}

func newJSRewriter(s *scan) *jsRewriter {
	return &jsRewriter{s: s, c: textcursor.New(s.input), patches: patch.NewList()}
}

func (r *jsRewriter) rewrite() string {
	r.parse()
	return flatten(r.s.input, r.patches)
}

// parse scans from the cursor to the end of its buffer.
func (r *jsRewriter) parse() {
	c := r.c
	for !c.AtEnd() {
		r.s.tick()
		start := c.Pos()
		nontrivial := true

		switch {
		case textcursor.IsSpace(c.Peek()):
			c.SkipWS()
			nontrivial = false
		case r.skipComment():
			nontrivial = false
		case r.skipLiteral(true):
		case c.Peek() == '(':
			r.groups = append(r.groups, parenGroup{open: start, empty: true})
			c.Next()
			nontrivial = false
		case c.Peek() == ')' && len(r.groups) > 0:
			r.groups = r.groups[:len(r.groups)-1]
			c.Next()
		default:
			r.processAccessUnit()
		}

		if nontrivial && len(r.groups) > 0 {
			r.groups[len(r.groups)-1].empty = false
		}
		if c.Pos() == start {
			c.Next()
		}
	}
}

// parseRange scans span in place, recording patches in this document.
func (r *jsRewriter) parseRange(span textcursor.Span) {
	if span.Empty() {
		return
	}
	sub := &jsRewriter{s: r.s, c: textcursor.New(r.s.input[:span.To]), patches: r.patches}
	sub.c.SkipTo(span.From)
	sub.parse()
}

// rewriteFragment rewrites text as a standalone script.
func (r *jsRewriter) rewriteFragment(text string) string {
	return newJSRewriter(r.s.child(text)).rewrite()
}

func (r *jsRewriter) processAccessUnit() {
	c := r.c
	prefixStart := c.Pos()

	base, ok := r.expectIdentifier(false)
	if !ok {
		return
	}

	// Calls on the root itself, as in f(a)(b).
	for {
		args, ok := c.ExpectNested("(", ")", r.skipAtom)
		if !ok {
			break
		}
		r.parseRange(args)
	}

	r.processAccessChain(base, r.validPrefix(prefixStart))
}

func (r *jsRewriter) processAccessChain(base textcursor.Span, prefixOK bool) {
	suspicious := isSuspicious(base.Text())

	var accesses []access
	for {
		a, ok := r.processAccess()
		if !ok {
			break
		}
		accesses = append(accesses, a)
		suspicious = suspicious || a.suspicious
	}

	if len(accesses) == 0 {
		return
	}

	if !suspicious || !prefixOK {
		for _, a := range accesses {
			for _, span := range a.fallbacks {
				r.parseRange(span)
			}
		}
		return
	}

	// Accesses after a closed group wrap the whole group, so their guards
	// open before its paren.
	anchor, pending := base.From, 0
	for _, a := range accesses {
		r.patches.Replace(a.span.From, a.span.To, a.replacement)
		pending++
		if a.closedGroup >= 0 {
			r.insertGuards(anchor, pending)
			anchor, pending = a.closedGroup, 0
		}
	}
	r.insertGuards(anchor, pending)
}

func (r *jsRewriter) insertGuards(at, n int) {
	if n > 0 {
		r.patches.InsertAt(at, strings.Repeat(r.s.eng.opts.Guard+"(", n))
	}
}

// processAccess matches one access and an optional call on it. An access
// that is the target of an assignment is not matched.
func (r *jsRewriter) processAccess() (access, bool) {
	c := r.c
	c.Save()
	start := c.Pos()

	a := access{closedGroup: -1}
	var field string
	if name, ok := r.expectDotAccess(); ok {
		field = `"` + name + `"`
		a.suspicious = isSuspicious(name)
	} else if index, ok := c.ExpectNested("[", "]", r.skipAtom); ok {
		a.fallbacks = append(a.fallbacks, index)
		field = r.rewriteFragment(index.Text())
		a.suspicious = !r.s.eng.opts.SkipIntegerIndexes || !isIntegerIndex(index.Text())
	} else {
		c.Restore()
		return access{}, false
	}

	closed := r.closeGroups()
	if closed > 0 {
		a.closedGroup = r.groups[len(r.groups)-closed].open
	}

	callArgs := "undefined"
	if args, ok := c.ExpectNested("(", ")", r.skipAtom); ok {
		a.fallbacks = append(a.fallbacks, args)
		callArgs = "[" + r.rewriteFragment(args.Text()) + "]"
	}
	end := c.Pos()

	// Further calls on the result stay outside the guard.
	var chained []textcursor.Span
	for {
		args, ok := c.ExpectNested("(", ")", r.skipAtom)
		if !ok {
			break
		}
		chained = append(chained, args)
	}

	if r.atAssignment() {
		c.Restore()
		return access{}, false
	}
	c.Pop()
	r.groups = r.groups[:len(r.groups)-closed]

	for _, span := range chained {
		r.parseRange(span)
	}

	a.span = c.Span(start, end)
	a.replacement = "," + field + "," + callArgs + ")" + strings.Repeat(")", closed)
	return a, true
}

// closeGroups consumes the closing parens of enclosing groups that hold
// nothing but this chain, as in (a.b)(), so the call that follows them can
// be folded into the guard and keep its receiver. It consumes nothing
// unless a call follows. The groups themselves stay open until the access
// is committed.
func (r *jsRewriter) closeGroups() int {
	c := r.c
	c.Save()

	closed := 0
	for i := len(r.groups) - 1; i >= 0 && r.groups[i].empty; i-- {
		if !r.groupPrefix(r.groups[i].open) || !c.ExpectPattern(matchWS, ")") {
			break
		}
		closed++
	}

	if closed == 0 || !r.callFollows() {
		c.Restore()
		return 0
	}
	c.Pop()
	return closed
}

// groupPrefix reports whether the paren at open is a grouping paren that
// may become part of a guard call. Statement heads like if (...) are not.
func (r *jsRewriter) groupPrefix(open int) bool {
	if !r.validPrefix(open) {
		return false
	}
	_, statement := statementKeywords[r.wordBefore(open)]
	return !statement
}

func (r *jsRewriter) callFollows() bool {
	c := r.c
	c.Save()
	defer c.Restore()

	c.SkipWS()
	return c.Peek() == '('
}

func (r *jsRewriter) expectDotAccess() (string, bool) {
	c := r.c
	c.Save()
	if !c.ExpectPattern(matchWS, ".") {
		c.Restore()
		return "", false
	}
	c.SkipWS()
	name, ok := r.expectIdentifier(true)
	if !ok {
		c.Restore()
		return "", false
	}
	c.Pop()
	return name.Text(), true
}

// expectIdentifier matches an identifier that starts at the cursor and is
// not the tail of a longer word. Property names may be reserved words.
func (r *jsRewriter) expectIdentifier(allowReserved bool) (textcursor.Span, bool) {
	c := r.c
	if isIdentByte(c.ByteAt(c.Pos()-1)) || !isIdentStart(c.Peek()) {
		return textcursor.Span{}, false
	}

	c.Save()
	name := c.ExpectUntil(func(b byte) bool { return !isIdentByte(b) })
	if !allowReserved {
		if _, reserved := reservedWords[name.Text()]; reserved {
			c.Restore()
			return textcursor.Span{}, false
		}
	}
	c.Pop()
	return name, true
}

// validPrefix reports whether the text before mark allows a chain starting
// at mark to be replaced by a call.
func (r *jsRewriter) validPrefix(mark int) bool {
	c := r.c
	_, last := c.PrevNonSpace(mark)
	if last < 0 {
		return true
	}
	input := c.Input()
	for _, prefix := range bannedPrefixes {
		from := last - len(prefix) + 1
		if from < 0 || input[from:last+1] != prefix {
			continue
		}
		if isIdentStart(prefix[0]) && isIdentByte(c.ByteAt(from-1)) {
			continue
		}
		return false
	}
	return true
}

// atAssignment looks ahead for an assignment or update operator.
func (r *jsRewriter) atAssignment() bool {
	c := r.c
	c.Save()
	defer c.Restore()

	c.SkipWS()
	for _, op := range assignmentOperators {
		if !c.HasPrefix(op, false) {
			continue
		}
		if op == "=" {
			next := c.ByteAt(c.Pos() + 1)
			return next != '=' && next != '>'
		}
		return true
	}
	return false
}

// skipAtom consumes a comment or literal inside a bracketed region.
func (r *jsRewriter) skipAtom() bool {
	r.s.tick()
	return r.skipComment() || r.skipLiteral(false)
}

func (r *jsRewriter) skipComment() bool {
	c := r.c
	switch {
	case c.HasPrefix("/*", false):
		_, ok := c.ExpectString("/*", "*/", false, false)
		return ok
	case c.HasPrefix("//", false):
		c.ExpectUntil(isLineBreak)
		return true
	default:
		return false
	}
}

// skipLiteral consumes a string, template, or regular expression. With
// rewrite set, template interpolations are rewritten in place.
func (r *jsRewriter) skipLiteral(rewrite bool) bool {
	c := r.c
	switch q := c.Peek(); q {
	case '"', '\'':
		_, ok := c.ExpectString(string(q), string(q), true, false)
		return ok
	case '`':
		return r.expectTemplate(rewrite)
	case '/':
		return r.expectRegex()
	default:
		return false
	}
}

func (r *jsRewriter) expectTemplate(rewrite bool) bool {
	c := r.c
	c.Save()
	c.Next()

	var holes []textcursor.Span
	for !c.AtEnd() {
		r.s.tick()
		switch {
		case c.Peek() == '\\':
			c.Advance(2)
		case c.Peek() == '`':
			c.Next()
			c.Pop()
			if rewrite {
				for _, hole := range holes {
					r.parseRange(hole)
				}
			}
			return true
		case c.HasPrefix("${", false):
			c.Next()
			hole, ok := c.ExpectNested("{", "}", r.skipAtom)
			if !ok {
				c.Restore()
				return false
			}
			holes = append(holes, hole)
		default:
			c.Next()
		}
	}

	c.Restore()
	return false
}

func (r *jsRewriter) expectRegex() bool {
	c := r.c
	if c.Peek() != '/' || !r.regexAllowed(c.Pos()) {
		return false
	}

	c.Save()
	c.Next()
	inClass := false
	body := 0
	for !c.AtEnd() {
		b := c.Peek()
		switch {
		case isLineBreak(b):
			c.Restore()
			return false
		case b == '\\':
			c.Advance(2)
		case b == '[':
			inClass = true
			c.Next()
		case b == ']':
			inClass = false
			c.Next()
		case b == '/' && !inClass:
			if body == 0 {
				c.Restore()
				return false
			}
			c.Next()
			c.ExpectUntil(func(b byte) bool { return !isIdentByte(b) })
			c.Pop()
			return true
		default:
			c.Next()
		}
		body++
	}

	c.Restore()
	return false
}

// regexAllowed decides whether a slash at pos opens a regular expression
// by looking at what precedes it.
func (r *jsRewriter) regexAllowed(pos int) bool {
	c := r.c
	prev, idx := c.PrevNonSpace(pos)
	if idx < 0 {
		return true
	}
	switch prev {
	case ')', ']', '"', '\'', '`':
		return false
	}
	if !isIdentByte(prev) {
		return true
	}

	_, keyword := regexKeywords[r.wordBefore(pos)]
	return keyword
}

// wordBefore returns the identifier that ends at the last non-space byte
// before pos, or "" when that byte is not part of one.
func (r *jsRewriter) wordBefore(pos int) string {
	c := r.c
	prev, idx := c.PrevNonSpace(pos)
	if idx < 0 || !isIdentByte(prev) {
		return ""
	}

	from := idx
	for from > 0 && isIdentByte(c.ByteAt(from-1)) {
		from--
	}
	return c.Input()[from : idx+1]
}

func isSuspicious(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func isIntegerIndex(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for i := range len(text) {
		b := text[i]
		if !textcursor.IsSpace(b) && (b < '0' || b > '9') {
			return false
		}
	}
	return true
}

// Bytes of multi-byte UTF-8 sequences count as identifier bytes, so a
// non-ASCII identifier is never split at its first ASCII letter.
func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '$' || b >= 0x80
}

func isIdentByte(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isLineBreak(b byte) bool {
	return b == '\n' || b == '\r'
}

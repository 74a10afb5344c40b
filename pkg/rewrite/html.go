package rewrite

import (
	"html"
	"mime"
	"strings"

	"github.com/yaklabco/passthrough/pkg/patch"
	"github.com/yaklabco/passthrough/pkg/textcursor"
)

// Tags whose bodies are raw text up to the matching close tag.
//
//nolint:gochecknoglobals // read-only tables
var (
	rawTags      = toSet("script", "style")
	removedAttrs = toSet("integrity", "nonce")

	attrDoubleQuoted = strings.NewReplacer("&", "&amp;", `"`, "&#34;")
	attrSingleQuoted = strings.NewReplacer("&", "&amp;", "'", "&#39;")
)

type htmlAttr struct {
	// start includes the whitespace separating the attribute from the
	// previous token; end is just past the value, or the name if none.
	start, end int
	name       textcursor.Span
	value      textcursor.Span
	hasValue   bool
}

type htmlTag struct {
	name  string
	attrs []htmlAttr
}

func (t htmlTag) attr(name string) (htmlAttr, bool) {
	for _, a := range t.attrs {
		if strings.EqualFold(a.name.Text(), name) {
			return a, true
		}
	}
	return htmlAttr{}, false
}

// rawRegion is an open script or style element awaiting its close tag.
type rawRegion struct {
	tag     string
	start   int
	rewrite bool
}

type htmlRewriter struct {
	s       *scan
	c       *textcursor.Cursor
	patches *patch.List

	raw          *rawRegion
	hookInserted bool
	doctypeEnd   int
}

func newHTMLRewriter(s *scan) *htmlRewriter {
	return &htmlRewriter{
		s:          s,
		c:          textcursor.New(s.input),
		patches:    patch.NewList(),
		doctypeEnd: -1,
	}
}

func (r *htmlRewriter) rewrite() string {
	c := r.c
	for !c.AtEnd() {
		r.s.tick()

		if r.raw != nil {
			end := c.Pos()
			if r.expectTagClose(r.raw.tag) {
				r.closeRaw(end)
				continue
			}
			c.Next()
			continue
		}

		if r.skipComment() || r.skipCDATA() {
			continue
		}
		if tag, ok := r.expectTagOpen(); ok {
			r.openTag(tag)
			continue
		}
		c.Next()
	}

	if hook := r.s.eng.opts.Hook; hook != "" && !r.hookInserted {
		r.patches.InsertAt(max(r.doctypeEnd, 0), hook)
		r.hookInserted = true
	}
	return flatten(r.s.input, r.patches)
}

func (r *htmlRewriter) openTag(tag htmlTag) {
	r.rewriteAttrs(tag)

	pos := r.c.Pos()
	switch tag.name {
	case "head":
		if hook := r.s.eng.opts.Hook; hook != "" && !r.hookInserted {
			r.patches.InsertAt(pos, hook)
			r.hookInserted = true
		}
	case "!doctype":
		if r.doctypeEnd < 0 {
			r.doctypeEnd = pos
		}
	}

	if _, ok := rawTags[tag.name]; ok {
		region := &rawRegion{tag: tag.name, start: pos}
		switch tag.name {
		case "script":
			typ, _ := tag.attr("type")
			region.rewrite = isScriptType(typ.value.Text())
		case "style":
			region.rewrite = r.s.eng.opts.InlineStyles
		}
		r.raw = region
	}
}

func (r *htmlRewriter) closeRaw(end int) {
	region := r.raw
	r.raw = nil
	if !region.rewrite || end <= region.start {
		return
	}

	body := r.c.Span(region.start, end).Text()
	var out string
	switch region.tag {
	case "script":
		out = r.s.eng.verified(body, newJSRewriter(r.s.child(body)).rewrite())
	case "style":
		out = newCSSRewriter(r.s.child(body)).rewrite()
	}
	if out != body {
		r.patches.Replace(region.start, end, out)
	}
}

func (r *htmlRewriter) rewriteAttrs(tag htmlTag) {
	for _, a := range tag.attrs {
		name := strings.ToLower(a.name.Text())
		if _, ok := removedAttrs[name]; ok {
			r.patches.Delete(a.start, a.end)
			continue
		}
		if !a.hasValue {
			continue
		}
		switch {
		case name == "href" || name == "src" || (name == "action" && tag.name == "form"):
			r.rewriteAttrURL(a.value)
		case name == "style" && r.s.eng.opts.InlineStyles:
			r.rewriteAttrStyle(a.value)
		}
	}
}

// rewriteAttrURL encodes an attribute value, keeping its quotes. The value
// is unescaped first because the browser resolves the unescaped URL.
func (r *htmlRewriter) rewriteAttrURL(value textcursor.Span) {
	quote, raw := unquote(value.Text())
	decoded := html.UnescapeString(raw)
	encoded := r.s.eng.opts.Encoder.Encode(decoded)
	if encoded == decoded {
		return
	}
	r.patches.Replace(value.From, value.To, quote+escapeAttr(encoded, quote)+quote)
}

func (r *htmlRewriter) rewriteAttrStyle(value textcursor.Span) {
	quote, raw := unquote(value.Text())
	decoded := html.UnescapeString(raw)
	out := newCSSRewriter(r.s.child(decoded)).rewrite()
	if out == decoded {
		return
	}
	r.patches.Replace(value.From, value.To, quote+escapeAttr(out, quote)+quote)
}

// expectTagOpen matches <name attr=value ...> or its self-closing form.
// It records nothing; the caller decides what to patch.
func (r *htmlRewriter) expectTagOpen() (htmlTag, bool) {
	c := r.c
	if c.Peek() != '<' {
		return htmlTag{}, false
	}

	c.Save()
	c.Next()
	name := c.ExpectUntil(func(b byte) bool { return b == '>' || b == '/' || textcursor.IsSpace(b) })
	if name.Empty() || !isTagName(name.Text()) {
		c.Restore()
		return htmlTag{}, false
	}

	tag := htmlTag{name: strings.ToLower(name.Text())}
	for !c.AtEnd() {
		r.s.tick()
		if c.ExpectPattern(matchWS, "/>") || c.ExpectPattern(matchWS, ">") {
			c.Pop()
			return tag, true
		}

		start := c.Pos()
		c.SkipWS()
		attrName := c.ExpectUntil(isAttrNameStop)
		if attrName.Empty() {
			// Stray quote or slash; step over it.
			c.Next()
			continue
		}

		a := htmlAttr{start: start, name: attrName}
		if c.ExpectPattern(matchWS, "=") {
			a.hasValue = true
			if v, ok := c.ExpectString(`"`, `"`, false, true); ok {
				a.value = v
			} else if v, ok := c.ExpectString(`'`, `'`, false, true); ok {
				a.value = v
			} else {
				c.SkipWS()
				a.value = c.ExpectUntil(isBareValueStop)
			}
		}
		a.end = c.Pos()
		tag.attrs = append(tag.attrs, a)
	}

	c.Restore()
	return htmlTag{}, false
}

// expectTagClose matches </name ...> for the given lower-case name.
func (r *htmlRewriter) expectTagClose(name string) bool {
	c := r.c
	if !c.HasPrefix("</", false) {
		return false
	}

	c.Save()
	c.Advance(2)
	if !c.ExpectPattern(matchFold, name) {
		c.Restore()
		return false
	}
	if next := c.Peek(); next != '>' && next != '/' && !textcursor.IsSpace(next) {
		c.Restore()
		return false
	}
	c.ExpectUntil(func(b byte) bool { return b == '>' })
	if c.AtEnd() {
		c.Restore()
		return false
	}
	c.Next()
	c.Pop()
	return true
}

func (r *htmlRewriter) skipComment() bool {
	return r.skipDelimited("<!--", "-->")
}

func (r *htmlRewriter) skipCDATA() bool {
	return r.skipDelimited("<![CDATA[", "]]>")
}

func (r *htmlRewriter) skipDelimited(open, closing string) bool {
	c := r.c
	if !c.HasPrefix(open, false) {
		return false
	}
	c.Save()
	c.Advance(len(open))
	if _, ok := c.ExpectUntilPattern(textcursor.MatchOptions{}, closing); !ok {
		c.Restore()
		return false
	}
	c.Pop()
	return true
}

// isScriptType reports whether a script element's type attribute selects
// JavaScript. An absent or empty type does.
func isScriptType(value string) bool {
	_, raw := unquote(value)
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "module") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	return strings.Contains(mediaType, "javascript") || strings.Contains(mediaType, "ecmascript")
}

// escapeAttr escapes an attribute value for the given quote style. Quoted
// values only need ampersands and their own quote escaped.
func escapeAttr(value, quote string) string {
	switch quote {
	case `"`:
		return attrDoubleQuoted.Replace(value)
	case "'":
		return attrSingleQuoted.Replace(value)
	default:
		return html.EscapeString(value)
	}
}

func unquote(text string) (string, string) {
	if n := len(text); n >= 2 && (text[0] == '"' || text[0] == '\'') && text[n-1] == text[0] {
		return text[:1], text[1 : n-1]
	}
	return "", text
}

func isTagName(name string) bool {
	for i := range len(name) {
		b := name[i]
		if !isAlnum(b) && b != '-' && b != '_' && b != '!' {
			return false
		}
	}
	return true
}

func isAttrNameStop(b byte) bool {
	return textcursor.IsSpace(b) || strings.IndexByte(`/<>"'=`, b) >= 0
}

func isBareValueStop(b byte) bool {
	return textcursor.IsSpace(b) || strings.IndexByte("\"'=<>`", b) >= 0
}

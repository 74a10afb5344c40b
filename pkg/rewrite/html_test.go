package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/hook"
	"github.com/yaklabco/passthrough/pkg/rewrite"
	"github.com/yaklabco/passthrough/pkg/urlcodec"
)

const testHook = "<script>HOOK</script>"

func withHook(o *rewrite.Options) { o.Hook = testHook }

func withInlineStyles(o *rewrite.Options) { o.InlineStyles = true }

func TestHTML_HookPlacement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "after head",
			input: `<!doctype html><html><head><title>t</title></head><body></body></html>`,
			want:  `<!doctype html><html><head>` + testHook + `<title>t</title></head><body></body></html>`,
		},
		{
			name:  "after head with attributes",
			input: `<html><HEAD lang="en"><meta charset="utf-8"></HEAD></html>`,
			want:  `<html><HEAD lang="en">` + testHook + `<meta charset="utf-8"></HEAD></html>`,
		},
		{
			name:  "only the first head",
			input: `<head></head><head></head>`,
			want:  `<head>` + testHook + `</head><head></head>`,
		},
		{
			name:  "header is not head",
			input: `<!DOCTYPE html><header></header><head></head>`,
			want:  `<!DOCTYPE html><header></header><head>` + testHook + `</head>`,
		},
		{
			name:  "after doctype without head",
			input: `<!DOCTYPE html><body><p>x</p></body>`,
			want:  `<!DOCTYPE html>` + testHook + `<body><p>x</p></body>`,
		},
		{
			name:  "at start without head or doctype",
			input: `<p>x</p>`,
			want:  testHook + `<p>x</p>`,
		},
		{
			name:  "empty document",
			input: ``,
			want:  testHook,
		},
		{
			name:  "head inside comment",
			input: `<!-- <head> --><p>x</p>`,
			want:  testHook + `<!-- <head> --><p>x</p>`,
		},
	}

	eng := newEngine(withHook)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mustRewrite(t, eng, contentkind.KindHTML, tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, strings.Count(got, testHook))
		})
	}
}

func TestHTML_Attributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double quoted href",
			input: `<a href="https://example.org/x">x</a>`,
			want:  `<a href="/p/https://example.org/x">x</a>`,
		},
		{
			name:  "single quoted src",
			input: `<img src='a.png' alt="">`,
			want:  `<img src='/p/a.png' alt="">`,
		},
		{
			name:  "bare src",
			input: `<img src=a.png>`,
			want:  `<img src=/p/a.png>`,
		},
		{
			name:  "upper case attribute",
			input: `<A HREF="x">`,
			want:  `<A HREF="/p/x">`,
		},
		{
			name:  "self closing",
			input: `<link href="s.css"/>`,
			want:  `<link href="/p/s.css"/>`,
		},
		{
			name:  "form action",
			input: `<form action="/submit" method="post">`,
			want:  `<form action="/p//submit" method="post">`,
		},
		{
			name:  "action outside form",
			input: `<button action="/submit">`,
			want:  `<button action="/submit">`,
		},
		{
			name:  "entities",
			input: `<a href="/x?a=1&amp;b=2">`,
			want:  `<a href="/p//x?a=1&amp;b=2">`,
		},
		{
			name:  "fragment",
			input: `<a href="#top">`,
			want:  `<a href="#top">`,
		},
		{
			name:  "valueless attribute",
			input: `<script async src="a.js"></script>`,
			want:  `<script async src="/p/a.js"></script>`,
		},
		{
			name:  "integrity and nonce removed",
			input: `<script src="a.js" integrity="sha384-abc" crossorigin nonce=r4nd></script>`,
			want:  `<script src="/p/a.js" crossorigin></script>`,
		},
		{
			name:  "other attributes untouched",
			input: `<div data-src="a.png" class="x">`,
			want:  `<div data-src="a.png" class="x">`,
		},
		{
			name:  "unterminated value",
			input: `<a href="x`,
			want:  `<a href="x`,
		},
		{
			name:  "comment passthrough",
			input: `<!-- <a href="x"> -->`,
			want:  `<!-- <a href="x"> -->`,
		},
		{
			name:  "cdata passthrough",
			input: `<![CDATA[<a href="x">]]>`,
			want:  `<![CDATA[<a href="x">]]>`,
		},
		{
			name:  "less than as text",
			input: `<p>1 < 2 <a href=x></p>`,
			want:  `<p>1 < 2 <a href=/p/x></p>`,
		},
	}

	eng := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mustRewrite(t, eng, contentkind.KindHTML, tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTML_Scripts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "inline script",
			input: `<script>var u = location.href;</script>`,
			want:  `<script>var u = G(location,"href",undefined);</script>`,
		},
		{
			name:  "close tag case and spacing",
			input: `<SCRIPT>a.location</Script >`,
			want:  `<SCRIPT>G(a,"location",undefined)</Script >`,
		},
		{
			name:  "javascript type",
			input: `<script type="text/javascript">a.location</script>`,
			want:  `<script type="text/javascript">G(a,"location",undefined)</script>`,
		},
		{
			name:  "module type",
			input: `<script type=module>a.location</script>`,
			want:  `<script type=module>G(a,"location",undefined)</script>`,
		},
		{
			name:  "data block",
			input: `<script type="application/json">{"u": a.location}</script>`,
			want:  `<script type="application/json">{"u": a.location}</script>`,
		},
		{
			name:  "markup inside script is not parsed",
			input: `<script>var s = '<a href="x">';</script><a href="y">`,
			want:  `<script>var s = '<a href="x">';</script><a href="/p/y">`,
		},
		{
			name:  "unclosed script",
			input: `<script>a.location`,
			want:  `<script>a.location`,
		},
		{
			name:  "style body untouched by default",
			input: `<style>a{b:url(x.png)}</style>`,
			want:  `<style>a{b:url(x.png)}</style>`,
		},
		{
			name:  "style attribute untouched by default",
			input: `<div style="background:url('x.png')">`,
			want:  `<div style="background:url('x.png')">`,
		},
	}

	eng := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mustRewrite(t, eng, contentkind.KindHTML, tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTML_InlineStyles(t *testing.T) {
	t.Parallel()

	eng := newEngine(withInlineStyles)

	got := mustRewrite(t, eng, contentkind.KindHTML, `<style>a{b:url(x.png)}</style>`)
	assert.Equal(t, `<style>a{b:url(/p/x.png)}</style>`, got)

	got = mustRewrite(t, eng, contentkind.KindHTML, `<div style="background:url('x.png')">`)
	assert.Equal(t, `<div style="background:url('/p/x.png')">`, got)

	got = mustRewrite(t, eng, contentkind.KindHTML, `<div style='background:url("x.png")'>`)
	assert.Equal(t, `<div style='background:url("/p/x.png")'>`, got)
}

func TestHTML_Document(t *testing.T) {
	t.Parallel()

	codec := urlcodec.New("https://proxy.test")
	hookScript := hook.Script(hook.Options{Origin: codec.Origin(), Prefix: codec.Prefix()})
	eng := rewrite.New(rewrite.Options{Encoder: codec, Hook: hookScript})

	input := `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="https://cdn.example.org/site.css" integrity="sha384-x">
  <script src="/app.js" nonce="abc"></script>
</head>
<body>
  <a id="home" href="https://example.org/">Home</a>
  <a id="mail" href="mailto:someone@example.org">Mail</a>
  <form action="https://example.org/search"><input name="q"></form>
  <img src="logo.png">
  <script>document.getElementById("home").onclick = function () { window.location.reload(); };</script>
</body>
</html>`

	out, err := eng.HTML(context.Background(), input)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, 0, doc.Find("[integrity]").Length())
	assert.Equal(t, 0, doc.Find("[nonce]").Length())

	href, _ := doc.Find("link").Attr("href")
	assert.Equal(t, codec.Encode("https://cdn.example.org/site.css"), href)
	assert.Equal(t, "https://cdn.example.org/site.css", codec.Decode(href))

	src, _ := doc.Find("head script[src]").Attr("src")
	assert.Equal(t, codec.Encode("/app.js"), src)

	home, _ := doc.Find("#home").Attr("href")
	assert.Equal(t, "https://example.org/", codec.Decode(home))

	mail, _ := doc.Find("#mail").Attr("href")
	assert.Equal(t, "mailto:someone@example.org", mail)

	action, _ := doc.Find("form").Attr("action")
	assert.Equal(t, "https://example.org/search", codec.Decode(action))

	assert.Equal(t, 1, strings.Count(out, hookScript))
	firstScript := doc.Find("head script").First().Text()
	assert.Contains(t, firstScript, hook.InstallFlag)

	inline := doc.Find("body script").Text()
	assert.Contains(t, inline, hook.Guard+"(")
	assert.Contains(t, inline, `"reload",[])`)
}

func FuzzHTML(f *testing.F) {
	seeds := []string{
		`<!doctype html><head><script>a.location</script></head>`,
		`<a href="x" integrity=y>`,
		`<script>`,
		`</script>`,
		`<!--`,
		`<![CDATA[`,
		`<a href='`,
		`<style>url(</style>`,
		`<<a>>`,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	eng := newEngine(withHook, withInlineStyles)
	f.Fuzz(func(t *testing.T, input string) {
		out, err := eng.HTML(context.Background(), input)
		require.NoError(t, err)
		assert.Contains(t, out, testHook)
		if !strings.Contains(input, "<") {
			assert.Equal(t, testHook+input, out)
		}
	})
}

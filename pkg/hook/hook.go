// Package hook renders the browser-side bootstrap script that the HTML
// rewriter injects into every page. The script defines the guard function
// that rewritten scripts call, URL helpers matching pkg/urlcodec, and an
// install-once flag so repeated injection is harmless.
package hook

import (
	_ "embed"
	"strings"
	"sync"
)

// Guard is the runtime function that wraps flagged property accesses.
const Guard = "window.sanitized_access"

// InstallFlag is the window property that marks the hook as installed.
const InstallFlag = "__passthrough_hook_installed"

//go:embed bootstrap.js
var bootstrapSource string

//nolint:gochecknoglobals // rendered scripts are cached per origin
var cache sync.Map

// Options selects the values substituted into the bootstrap script.
type Options struct {
	// Origin is the proxy origin, for example "https://proxy.example".
	Origin string
	// Prefix is the path segment marking absolute payloads.
	Prefix string
}

// Source returns the bootstrap JavaScript for opts without a script tag.
func Source(opts Options) string {
	key := opts.Origin + "\x00" + opts.Prefix
	if cached, ok := cache.Load(key); ok {
		return cached.(string)
	}

	replacer := strings.NewReplacer(
		"__PASSTHROUGH_FLAG__", InstallFlag,
		"__PASSTHROUGH_ORIGIN__", jsEscape(strings.TrimRight(opts.Origin, "/")),
		"__PASSTHROUGH_PREFIX__", jsEscape(opts.Prefix),
	)
	rendered := replacer.Replace(bootstrapSource)

	actual, _ := cache.LoadOrStore(key, rendered)
	return actual.(string)
}

// Script returns the bootstrap wrapped in a script element, ready to be
// inserted into a document.
func Script(opts Options) string {
	return "<script>" + Source(opts) + "</script>"
}

// jsEscape makes s safe inside a single-quoted JavaScript string that
// itself sits inside an HTML script element.
func jsEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '<':
			b.WriteString(`\x3c`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

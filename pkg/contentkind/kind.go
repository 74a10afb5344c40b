// Package contentkind decides which rewriter, if any, handles a response
// body. The primary signal is the declared MIME type; when that is missing
// or generic the body and file name are sniffed.
package contentkind

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-enry/go-enry/v2"
)

// Kind names a rewriter.
type Kind string

// Supported kinds. KindNone bodies are echoed unchanged.
const (
	KindNone       Kind = "none"
	KindHTML       Kind = "html"
	KindCSS        Kind = "css"
	KindJavaScript Kind = "javascript"
)

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindHTML, KindCSS, KindJavaScript, KindNone}
}

func (k Kind) String() string { return string(k) }

// Rewritable reports whether k selects a rewriter.
func (k Kind) Rewritable() bool {
	switch k {
	case KindHTML, KindCSS, KindJavaScript:
		return true
	default:
		return false
	}
}

// Parse converts a user-supplied name to a Kind. "js" is accepted for
// JavaScript.
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return KindHTML, nil
	case "css":
		return KindCSS, nil
	case "javascript", "js":
		return KindJavaScript, nil
	case "none", "":
		return KindNone, nil
	default:
		return KindNone, fmt.Errorf("unknown content kind %q", s)
	}
}

// Classify maps a Content-Type value to a Kind by substring match on the
// media type, so "application/xhtml+xml" is HTML and
// "application/x-javascript" is JavaScript.
func Classify(contentType string) Kind {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	switch {
	case mediaType == "":
		return KindNone
	case strings.Contains(mediaType, "html"):
		return KindHTML
	case strings.Contains(mediaType, "css"):
		return KindCSS
	case strings.Contains(mediaType, "javascript"), strings.Contains(mediaType, "ecmascript"):
		return KindJavaScript
	default:
		return KindNone
	}
}

// Generic reports whether a Content-Type carries no useful type
// information and the body should be sniffed instead.
func Generic(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(contentType) == ""
	}
	switch strings.ToLower(mediaType) {
	case "application/octet-stream", "text/plain", "binary/octet-stream":
		return true
	default:
		return false
	}
}

// Resolve returns the kind for a body with the given declared type,
// sniffing the body when the type is generic.
func Resolve(contentType string, body []byte) Kind {
	if !Generic(contentType) {
		return Classify(contentType)
	}
	return Sniff(body)
}

// Sniff guesses a kind from content alone.
func Sniff(content []byte) Kind {
	if len(bytes.TrimSpace(content)) == 0 {
		return KindNone
	}

	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		switch {
		case m.Is("text/html"):
			return KindHTML
		case m.Is("text/javascript"), m.Is("application/javascript"):
			return KindJavaScript
		}
	}
	if !detected.Is("text/plain") {
		return KindNone
	}

	if lang, safe := enry.GetLanguageByShebang(content); safe {
		return fromLanguage(lang)
	}

	candidates := []string{"HTML", "CSS", "JavaScript"}
	if lang, safe := enry.GetLanguageByClassifier(content, candidates); safe && lang != "" {
		return fromLanguage(lang)
	}
	return KindNone
}

// ForPath guesses a kind from a file name, falling back to Sniff.
func ForPath(path string, content []byte) Kind {
	if lang, safe := enry.GetLanguageByExtension(path); safe {
		if kind := fromLanguage(lang); kind != KindNone {
			return kind
		}
	}
	return Sniff(content)
}

func fromLanguage(lang string) Kind {
	switch lang {
	case "HTML", "XHTML":
		return KindHTML
	case "CSS":
		return KindCSS
	case "JavaScript":
		return KindJavaScript
	default:
		return KindNone
	}
}

// Package urlcodec maps destination URLs to proxy paths and back.
//
// An absolute destination becomes <origin>/q/<payload>/ where payload is the
// URL base64-encoded and then percent-escaped. A relative reference becomes a
// bare <payload>/ so the browser resolves it against the current proxied
// page; Decode then resolves the chain of payloads segment by segment.
// Fragments stay outside the payload so in-page navigation keeps working.
package urlcodec

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

// DefaultPrefix is the path segment that marks an absolute payload.
const DefaultPrefix = "q"

// resolveBase stands in for the page location when a relative reference is
// validated or a payload chain is resolved.
const resolveBase = "https://example.com"

//nolint:gochecknoglobals // compiled once
var absolutePattern = regexp.MustCompile(`(?i)^(?:[a-z+]+:)?//`)

// Codec encodes URLs for a proxy served at Origin.
type Codec struct {
	origin string
	prefix string
}

// New returns a codec for the given proxy origin, for example
// "https://proxy.example". A trailing slash is ignored.
func New(origin string) *Codec {
	return &Codec{
		origin: strings.TrimRight(origin, "/"),
		prefix: DefaultPrefix,
	}
}

// Origin returns the proxy origin.
func (c *Codec) Origin() string { return c.origin }

// Prefix returns the absolute-payload path segment.
func (c *Codec) Prefix() string { return c.prefix }

// Encode rewrites raw into a proxy reference. References with a scheme
// other than http or https, and anything that does not parse, are returned
// unchanged.
func (c *Codec) Encode(raw string) string {
	if !proxiable(raw) {
		return raw
	}

	target, fragment := splitFragment(raw)
	if target == "" {
		return raw
	}

	payload := encodePayload(target)
	if absolutePattern.MatchString(target) {
		return c.origin + "/" + c.prefix + "/" + payload + "/" + fragment
	}
	return payload + "/" + fragment
}

// Decode reverses Encode for a proxy path or full proxy URL. It returns its
// input unchanged when the path does not hold a valid payload.
func (c *Codec) Decode(encoded string) string {
	rest, fragment := splitFragment(encoded)

	u, err := url.Parse(rest)
	if err != nil {
		return encoded
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return encoded
	}

	segments := strings.Split(u.EscapedPath(), "/")
	if len(segments) > 0 && segments[0] == "" {
		segments = segments[1:]
	}
	if len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return encoded
	}

	if segments[0] != c.prefix {
		decoded, ok := decodePayload(segments[0])
		if !ok {
			return encoded
		}
		return decoded + fragment
	}

	segments = segments[1:]
	if len(segments) == 0 {
		return encoded
	}

	first, ok := decodePayload(segments[0])
	if !ok {
		return encoded
	}
	if len(segments) == 1 {
		return first + fragment
	}

	current, err := url.Parse(resolveBase)
	if err != nil {
		return encoded
	}
	for _, seg := range segments {
		decoded, ok := decodePayload(seg)
		if !ok {
			return encoded
		}
		ref, err := url.Parse(decoded)
		if err != nil {
			return encoded
		}
		current = current.ResolveReference(ref)
	}
	current.Fragment = ""
	current.RawFragment = ""
	return current.String() + fragment
}

func proxiable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return true
	default:
		return false
	}
}

// splitFragment separates everything from the first '#'.
func splitFragment(s string) (string, string) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func encodePayload(s string) string {
	return url.QueryEscape(base64.StdEncoding.EncodeToString([]byte(s)))
}

func decodePayload(seg string) (string, bool) {
	unescaped, err := url.PathUnescape(seg)
	if err != nil {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

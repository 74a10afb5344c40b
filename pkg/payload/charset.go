package payload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/yaklabco/passthrough/pkg/contentkind"
)

// ToUTF8 returns body as UTF-8 text. The charset parameter of contentType
// wins; otherwise valid UTF-8 is taken as is, HTML is prescanned for a
// <meta> declaration, and anything else is run through a statistical
// detector. Bytes that cannot be transcoded are passed through unchanged.
func ToUTF8(contentType string, kind contentkind.Kind, body []byte) (string, error) {
	if label := declaredCharset(contentType); label != "" {
		return transcode(label, body)
	}

	if utf8.Valid(body) {
		return string(body), nil
	}

	// HTML falls back to windows-1252 when no <meta> names a charset.
	if kind == contentkind.KindHTML {
		_, name, _ := charset.DetermineEncoding(body, "text/html")
		return transcode(name, body)
	}

	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return string(body), nil //nolint:nilerr // undetectable bytes pass through
	}
	return transcode(result.Charset, body)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func transcode(label string, body []byte) (string, error) {
	enc, name := charset.Lookup(label)
	if enc == nil {
		// Unknown label: treat the bytes as already decoded.
		return string(body), nil
	}
	if name == "utf-8" {
		return string(body), nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", label, err)
	}
	return string(out), nil
}

// Package payload turns a buffered response body into UTF-8 text the
// rewriters can scan: it undoes Content-Encoding compression and transcodes
// legacy character sets.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding token this
// package cannot undo.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// ErrBodyTooLarge is returned when a decoded body exceeds the limit.
var ErrBodyTooLarge = errors.New("decoded body exceeds size limit")

// Decode undoes the codings listed in a Content-Encoding header value.
// Codings are applied in the listed order, so they are removed in reverse.
// A limit of zero or less disables the size check.
func Decode(contentEncoding string, body []byte, limit int64) ([]byte, error) {
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" {
			continue
		}
		decoded, err := decodeOne(coding, body, limit)
		if err != nil {
			return nil, err
		}
		body = decoded
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func decodeOne(coding string, body []byte, limit int64) ([]byte, error) {
	src := bytes.NewReader(body)

	switch coding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readLimited(coding, zr, limit)

	case "deflate":
		// Servers disagree on whether deflate carries a zlib header.
		if zr, err := zlib.NewReader(src); err == nil {
			out, err := readLimited(coding, zr, limit)
			zr.Close()
			if err == nil || errors.Is(err, ErrBodyTooLarge) {
				return out, err
			}
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return readLimited(coding, fr, limit)

	case "br":
		return readLimited(coding, brotli.NewReader(src), limit)

	case "zstd":
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		return readLimited(coding, dec, limit)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, coding)
	}
}

func readLimited(coding string, r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", coding, err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, ErrBodyTooLarge
	}
	return out, nil
}

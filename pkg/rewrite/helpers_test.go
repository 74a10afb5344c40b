package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/rewrite"
)

// testGuard keeps expected outputs short.
const testGuard = "G"

// prefixEncoder proxies every reference that is not a fragment or a
// data, javascript, or mailto URL by prefixing it with /p/.
type prefixEncoder struct{}

func (prefixEncoder) Encode(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, skip := range []string{"data:", "javascript:", "mailto:", "#"} {
		if strings.HasPrefix(lower, skip) {
			return raw
		}
	}
	if raw == "" {
		return raw
	}
	return "/p/" + raw
}

func newEngine(mutate ...func(*rewrite.Options)) *rewrite.Engine {
	opts := rewrite.Options{
		Encoder: prefixEncoder{},
		Guard:   testGuard,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return rewrite.New(opts)
}

func mustRewrite(t *testing.T, eng *rewrite.Engine, kind contentkind.Kind, input string) string {
	t.Helper()

	out, err := eng.Rewrite(context.Background(), kind, input)
	require.NoError(t, err)
	return out
}

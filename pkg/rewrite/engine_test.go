package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/contentkind"
	"github.com/yaklabco/passthrough/pkg/rewrite"
)

func TestRewrite_Dispatch(t *testing.T) {
	t.Parallel()

	eng := newEngine()

	tests := []struct {
		kind  contentkind.Kind
		input string
		want  string
	}{
		{contentkind.KindNone, `a.location <a href="x"> url(x)`, `a.location <a href="x"> url(x)`},
		{contentkind.KindJavaScript, `a.location`, `G(a,"location",undefined)`},
		{contentkind.KindCSS, `url(x)`, `url(/p/x)`},
		{contentkind.KindHTML, `<a href="x">`, `<a href="/p/x">`},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, mustRewrite(t, eng, tt.kind, tt.input))
		})
	}
}

func TestRewrite_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newEngine()
	inputs := map[contentkind.Kind]string{
		contentkind.KindHTML:       strings.Repeat(`<a href="x">`, 2048),
		contentkind.KindCSS:        strings.Repeat(`a{b:url(x)}`, 2048),
		contentkind.KindJavaScript: strings.Repeat(`a.location;`, 2048),
	}
	for kind, input := range inputs {
		out, err := eng.Rewrite(ctx, kind, input)
		require.ErrorIs(t, err, context.Canceled, kind.String())
		assert.Empty(t, out)
	}
}

func TestRewrite_ShortInputIgnoresCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fewer steps than one context check.
	out, err := newEngine().JavaScript(ctx, `a.location`)
	require.NoError(t, err)
	assert.Equal(t, `G(a,"location",undefined)`, out)
}

func TestRewrite_Concurrent(t *testing.T) {
	t.Parallel()

	eng := newEngine(withHook)
	input := `<head></head><script>a.location</script><a href="x">`
	want := mustRewrite(t, eng, contentkind.KindHTML, input)

	done := make(chan string, 8)
	for range 8 {
		go func() {
			out, _ := eng.HTML(context.Background(), input)
			done <- out
		}()
	}
	for range 8 {
		assert.Equal(t, want, <-done)
	}
}

func TestRewrite_VerifyScriptsKeepsValidRewrite(t *testing.T) {
	t.Parallel()

	eng := newEngine(func(o *rewrite.Options) { o.VerifyScripts = true })
	out := mustRewrite(t, eng, contentkind.KindJavaScript, `var u = location.href;`)
	assert.Equal(t, `var u = G(location,"href",undefined);`, out)
}

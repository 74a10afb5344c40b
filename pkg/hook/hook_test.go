package hook_test

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/hook"
)

func TestScriptSubstitutesOptions(t *testing.T) {
	t.Parallel()

	script := hook.Script(hook.Options{Origin: "https://proxy.test/", Prefix: "q"})

	assert.True(t, strings.HasPrefix(script, "<script>"))
	assert.True(t, strings.HasSuffix(script, "</script>"))
	assert.Contains(t, script, "'https://proxy.test'")
	assert.Contains(t, script, hook.InstallFlag)
	assert.Contains(t, script, hook.Guard+" = function")
	assert.NotContains(t, script, "__PASSTHROUGH_")
}

func TestSourceIsCached(t *testing.T) {
	t.Parallel()

	opts := hook.Options{Origin: "https://cache.test", Prefix: "q"}
	first := hook.Source(opts)
	second := hook.Source(opts)
	assert.Equal(t, first, second)

	other := hook.Source(hook.Options{Origin: "https://other.test", Prefix: "q"})
	assert.NotEqual(t, first, other)
}

func TestSourceEscapesOrigin(t *testing.T) {
	t.Parallel()

	src := hook.Source(hook.Options{Origin: "https://x.test/'</script>", Prefix: "q"})
	assert.NotContains(t, src, "'</script>")
	assert.Contains(t, src, `\'\x3c/script>`)
}

func TestSourceCompiles(t *testing.T) {
	t.Parallel()

	_, err := goja.Compile("bootstrap.js", hook.Source(hook.Options{Origin: "https://proxy.test", Prefix: "q"}), false)
	require.NoError(t, err)
}

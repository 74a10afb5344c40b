package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/internal/cli"
	"github.com/yaklabco/passthrough/pkg/config"
	"github.com/yaklabco/passthrough/pkg/hook"
	"github.com/yaklabco/passthrough/pkg/urlcodec"
)

const testOrigin = "http://proxy.test"

// writeConfig writes an explicit config file so tests do not depend on
// configuration found around the working directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "passthrough.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, "proxy:\n  origin: "+testOrigin+"\nworkers:\n  count: 2\n")
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestIntegration_RewriteStdinCSS(t *testing.T) {
	t.Parallel()

	codec := urlcodec.New(testOrigin)

	stdout, stderr, err := execute(t, "a{b:url(https://example.com/a.png)}",
		"rewrite", "--config", testConfig(t), "--kind", "css")
	require.NoError(t, err)

	assert.Equal(t, "a{b:url("+codec.Encode("https://example.com/a.png")+")}", stdout)
	assert.Contains(t, stderr, "1 input rewritten")
}

func TestIntegration_RewriteStdinSniffsHTML(t *testing.T) {
	t.Parallel()

	codec := urlcodec.New(testOrigin)
	input := `<!DOCTYPE html><html><head><title>t</title></head><body><a href="https://example.com/x">x</a></body></html>`

	stdout, _, err := execute(t, input, "rewrite", "--config", testConfig(t), "--summary", "none")
	require.NoError(t, err)

	assert.Contains(t, stdout, hook.Script(hook.Options{Origin: testOrigin, Prefix: codec.Prefix()}))
	assert.Contains(t, stdout, `href="`+codec.Encode("https://example.com/x")+`"`)
}

func TestIntegration_RewriteNoHook(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, `<html><head></head><body></body></html>`,
		"rewrite", "--config", testConfig(t), "--kind", "html", "--no-hook", "--summary", "none")
	require.NoError(t, err)

	assert.NotContains(t, stdout, hook.InstallFlag)
}

func TestIntegration_RewriteOriginFlagOverridesConfig(t *testing.T) {
	t.Parallel()

	codec := urlcodec.New("https://other.test")

	stdout, _, err := execute(t, "a{b:url(https://example.com/a.png)}",
		"rewrite", "--config", testConfig(t), "--kind", "css", "--origin", "https://other.test", "--summary", "none")
	require.NoError(t, err)

	assert.Contains(t, stdout, codec.Encode("https://example.com/a.png"))
}

func TestIntegration_RewriteJavaScriptGzip(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write([]byte("var u = location.href;"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	stdout, _, err := execute(t, compressed.String(),
		"rewrite", "--config", testConfig(t), "--content-encoding", "gzip", "--kind", "js", "--summary", "none")
	require.NoError(t, err)

	assert.Equal(t, `var u = `+hook.Guard+`(location,"href",undefined);`, stdout)
}

func TestIntegration_RewriteOutDir(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "site")
	out := filepath.Join(t.TempDir(), "dist")
	writeTree(t, site, map[string]string{
		"index.html":   `<html><head></head><body><img src="/logo.bin"></body></html>`,
		"css/site.css": "body{background:url(/bg.png)}",
		"logo.bin":     "\x89PNG\x00\x01\x02",
		".git/config":  "[core]",
		"drafts/a.css": "a{}",
	})

	codec := urlcodec.New(testOrigin)

	_, stderr, err := execute(t, "", "rewrite", "--config", testConfig(t), "--out", out, "--summary", "table",
		"--exclude", "drafts", site)
	require.NoError(t, err)

	css, err := os.ReadFile(filepath.Join(out, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{background:url("+codec.Encode("/bg.png")+")}", string(css))

	html, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), codec.Encode("/logo.bin"))

	logo, err := os.ReadFile(filepath.Join(out, "logo.bin"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\x00\x01\x02", string(logo))

	assert.NoDirExists(t, filepath.Join(out, ".git"))
	assert.NoDirExists(t, filepath.Join(out, "drafts"))

	assert.Contains(t, stderr, "INPUT")
	assert.Contains(t, stderr, "passed through")
	assert.Contains(t, stderr, "Rewrite complete")
}

func TestIntegration_RewriteInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"app.js": "x = window.location;"})

	_, _, err := execute(t, "", "rewrite", "--config", testConfig(t), "--in-place", "--summary", "none",
		filepath.Join(dir, "app.js"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, `x = `+hook.Guard+`(window,"location",undefined);`, string(got))
}

func TestIntegration_RewriteFailedJob(t *testing.T) {
	t.Parallel()

	_, stderr, err := execute(t, "definitely not gzip",
		"rewrite", "--config", testConfig(t), "--content-encoding", "gzip", "--kind", "css")
	require.ErrorIs(t, err, cli.ErrJobsFailed)

	assert.Equal(t, cli.ExitJobsFailed, cli.ExitCode(err))
	assert.Contains(t, stderr, "1 failed")
	assert.Contains(t, stderr, "error -:")
}

func TestIntegration_RewriteMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "", "rewrite", "--config", testConfig(t), filepath.Join(t.TempDir(), "nope.html"))
	require.Error(t, err)
	assert.Equal(t, cli.ExitIOError, cli.ExitCode(err))
}

func TestIntegration_RewriteMetrics(t *testing.T) {
	t.Parallel()

	metrics := filepath.Join(t.TempDir(), "metrics.prom")

	_, _, err := execute(t, "a{}", "rewrite", "--config", testConfig(t), "--kind", "css",
		"--summary", "none", "--metrics", metrics)
	require.NoError(t, err)

	content, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(content), "passthrough_scheduler_queue_depth")
	assert.Contains(t, string(content), "passthrough_scheduler_jobs_total")
}

func TestIntegration_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, "workers:\n  job_timeout: 10ms\n  tick_interval: 1s\n")

	_, _, err := execute(t, "a{}", "rewrite", "--config", cfg, "--kind", "css")
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
	assert.Contains(t, err.Error(), "tick_interval")
}

func TestIntegration_URLRoundTrip(t *testing.T) {
	t.Parallel()

	codec := urlcodec.New(testOrigin)
	cfg := testConfig(t)
	destination := "https://example.com/app.js?v=2"

	stdout, _, err := execute(t, "", "url", "encode", "--config", cfg, destination, "/relative.css")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, codec.Encode(destination), lines[0])
	assert.Equal(t, codec.Encode("/relative.css"), lines[1])

	stdout, _, err = execute(t, "", "url", "decode", "--config", cfg, lines[0])
	require.NoError(t, err)
	assert.Equal(t, destination+"\n", stdout)
}

func TestIntegration_Hook(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	stdout, _, err := execute(t, "", "hook", "--config", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "<script>"))
	assert.Contains(t, stdout, testOrigin)

	stdout, _, err = execute(t, "", "hook", "--config", cfg, "--raw", "--origin", "https://raw.test")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(stdout, "<script>"))
	assert.Contains(t, stdout, hook.InstallFlag)
	assert.Contains(t, stdout, "https://raw.test")
}

func TestIntegration_Init(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yml")

	_, _, err := execute(t, "", "init", "--output", path, "--origin", "https://init.test")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.FromYAML(content)
	require.NoError(t, err)
	assert.Equal(t, "https://init.test", cfg.Proxy.Origin)
	assert.Equal(t, config.DefaultWorkerCount, cfg.Workers.Count)

	_, _, err = execute(t, "", "init", "--output", path)
	require.Error(t, err)
	assert.Equal(t, cli.ExitInvalidUsage, cli.ExitCode(err))

	_, _, err = execute(t, "", "init", "--output", path, "--force", "--full")
	require.NoError(t, err)

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "PASSTHROUGH_JOB_TIMEOUT")
	assert.NotContains(t, string(content), "https://init.test")
}

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/config"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	assert.Equal(t, "http://localhost:8080", cfg.Proxy.Origin)
	assert.Equal(t, 12, cfg.Workers.Count)
	assert.Equal(t, 30*time.Second, cfg.Workers.JobTimeout.Std())
	assert.Equal(t, 100*time.Millisecond, cfg.Workers.TickInterval.Std())
	assert.Equal(t, 32<<10, cfg.Workers.ChunkSize)
	assert.True(t, cfg.Rewrite.InjectHook)
	assert.False(t, cfg.Rewrite.InlineStyles)
	assert.Equal(t, int64(32<<20), cfg.Rewrite.MaxBodyBytes)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigClone(t *testing.T) {
	t.Parallel()

	t.Run("nil config returns nil", func(t *testing.T) {
		t.Parallel()

		var c *config.Config
		assert.Nil(t, c.Clone())
	})

	t.Run("modifying clone leaves original alone", func(t *testing.T) {
		t.Parallel()

		original := config.NewConfig()
		clone := original.Clone()
		require.NotNil(t, clone)
		assert.NotSame(t, original, clone)
		assert.Equal(t, original, clone)

		clone.Proxy.Origin = "https://other.example"
		clone.Rewrite.InjectHook = false
		assert.Equal(t, config.DefaultOrigin, original.Proxy.Origin)
		assert.True(t, original.Rewrite.InjectHook)
	})
}

func TestFromYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{
			name:  "empty document keeps defaults",
			input: "",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.NewConfig(), cfg)
			},
		},
		{
			name: "partial document overrides only its keys",
			input: `proxy:
  origin: https://proxy.example
workers:
  job_timeout: 5s
rewrite:
  inject_hook: false
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "https://proxy.example", cfg.Proxy.Origin)
				assert.Equal(t, 5*time.Second, cfg.Workers.JobTimeout.Std())
				assert.Equal(t, config.DefaultTickInterval, cfg.Workers.TickInterval.Std())
				assert.Equal(t, config.DefaultWorkerCount, cfg.Workers.Count)
				assert.False(t, cfg.Rewrite.InjectHook)
			},
		},
		{
			name:    "bad duration",
			input:   "workers:\n  job_timeout: soon\n",
			wantErr: true,
		},
		{
			name:  "unknown keys are ignored when not strict",
			input: "flavor: gfm\n",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.NewConfig(), cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.FromYAML([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestDecodeInto_Strict(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	err := config.DecodeInto(cfg, []byte("workers:\n  threads: 4\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads")
}

func TestToYAML_RoundTrip(t *testing.T) {
	t.Parallel()

	original := config.NewConfig()
	original.Proxy.Origin = "https://proxy.example"
	original.Workers.TickInterval = config.Duration(250 * time.Millisecond)
	original.Rewrite.VerifyScripts = true

	data, err := original.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "tick_interval: 250ms")
	assert.Contains(t, string(data), "job_timeout: 30s")

	parsed, err := config.FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestToYAMLWithHeader(t *testing.T) {
	t.Parallel()

	data, err := config.NewConfig().ToYAMLWithHeader("# header")
	require.NoError(t, err)
	assert.Regexp(t, `^# header\n\nproxy:\n`, string(data))

	var c *config.Config
	data, err = c.ToYAML()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGenerateTemplate(t *testing.T) {
	t.Parallel()

	t.Run("minimal template sets only the origin", func(t *testing.T) {
		t.Parallel()

		data := config.GenerateTemplate(config.TemplateOptions{Origin: "https://proxy.example"})
		assert.Contains(t, string(data), "# passthrough configuration")
		assert.Contains(t, string(data), "# count: 12")

		cfg, err := config.FromYAML(data)
		require.NoError(t, err)

		want := config.NewConfig()
		want.Proxy.Origin = "https://proxy.example"
		assert.Equal(t, want, cfg)
	})

	t.Run("full template parses strictly to the defaults", func(t *testing.T) {
		t.Parallel()

		data := config.GenerateTemplate(config.TemplateOptions{Full: true})

		cfg := &config.Config{}
		require.NoError(t, config.DecodeInto(cfg, data, true))
		assert.Equal(t, config.NewConfig(), cfg)
	})
	t.Run("environment overrides are listed as comments", func(t *testing.T) {
		t.Parallel()

		data := config.GenerateTemplate(config.TemplateOptions{
			Full:    true,
			EnvVars: map[string]string{"B_VAR": "second", "A_VAR": "first"},
		})

		text := string(data)
		assert.Less(t, strings.Index(text, "A_VAR"), strings.Index(text, "B_VAR"))

		cfg, err := config.FromYAML(data)
		require.NoError(t, err)
		assert.Equal(t, config.NewConfig(), cfg)
	})
}

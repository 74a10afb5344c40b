package config

import (
	"bytes"
	"fmt"
	"sort"
)

// TemplateOptions controls configuration template generation.
type TemplateOptions struct {
	// Full writes every key with its default value.
	// If false, only the proxy origin is set and the rest is commented out.
	Full bool

	// Origin overrides the proxy origin written to the template.
	Origin string

	// EnvVars, when set, is appended as a commented list of environment
	// overrides keyed by variable name.
	EnvVars map[string]string
}

// templateKey is one documented key of the generated template.
type templateKey struct {
	section string
	name    string
	value   string
	comment string
}

// GenerateTemplate creates a commented configuration file template.
func GenerateTemplate(opts TemplateOptions) []byte {
	cfg := NewConfig()
	if opts.Origin != "" {
		cfg.Proxy.Origin = opts.Origin
	}

	keys := []templateKey{
		{"proxy", "origin", fmt.Sprintf("%q", cfg.Proxy.Origin),
			"Scheme and host of the proxy that rewritten URLs point at"},
		{"workers", "count", fmt.Sprint(cfg.Workers.Count),
			"Number of long-lived rewrite workers (0 = one per CPU)"},
		{"workers", "job_timeout", cfg.Workers.JobTimeout.String(),
			"A job running longer than this fails and its worker is replaced"},
		{"workers", "tick_interval", cfg.Workers.TickInterval.String(),
			"How often queued jobs are assigned and timeouts checked"},
		{"workers", "chunk_size", fmt.Sprint(cfg.Workers.ChunkSize),
			"Size in bytes of each streamed output chunk"},
		{"rewrite", "inject_hook", fmt.Sprint(cfg.Rewrite.InjectHook),
			"Insert the bootstrap script into every HTML document"},
		{"rewrite", "inline_styles", fmt.Sprint(cfg.Rewrite.InlineStyles),
			"Rewrite url() inside <style> bodies and style attributes"},
		{"rewrite", "verify_scripts", fmt.Sprint(cfg.Rewrite.VerifyScripts),
			"Keep the original script when the rewritten one fails to parse"},
		{"rewrite", "skip_integer_indexes", fmt.Sprint(cfg.Rewrite.SkipIntegerIndexes),
			"Leave obj[0]-style integer index access unwrapped"},
		{"rewrite", "max_body_bytes", fmt.Sprint(cfg.Rewrite.MaxBodyBytes),
			"Upper bound on a decompressed body"},
	}

	var buf bytes.Buffer
	buf.WriteString(DefaultTemplateHeader())
	buf.WriteString("\n")

	section := ""
	for _, key := range keys {
		// The origin is the one key a new project always sets.
		active := opts.Full || key.name == "origin"
		prefix := "# "
		if active {
			prefix = ""
		}

		if key.section != section {
			section = key.section
			buf.WriteString("\n")
			if active || opts.Full {
				fmt.Fprintf(&buf, "%s:\n", section)
			} else {
				fmt.Fprintf(&buf, "# %s:\n", section)
			}
		}

		fmt.Fprintf(&buf, "  # %s\n", key.comment)
		fmt.Fprintf(&buf, "  %s%s: %s\n", prefix, key.name, key.value)
	}

	buf.WriteString("\n# Log level: debug, info, warn, or error\n")
	if opts.Full {
		fmt.Fprintf(&buf, "log_level: %s\n", cfg.LogLevel)
	} else {
		fmt.Fprintf(&buf, "# log_level: %s\n", cfg.LogLevel)
	}

	if len(opts.EnvVars) > 0 {
		names := make([]string, 0, len(opts.EnvVars))
		for name := range opts.EnvVars {
			names = append(names, name)
		}
		sort.Strings(names)

		buf.WriteString("\n# Environment overrides (applied after config files):\n")
		for _, name := range names {
			fmt.Fprintf(&buf, "#   %s  %s\n", name, opts.EnvVars[name])
		}
	}

	return buf.Bytes()
}

// DefaultTemplateHeader returns the default header for generated configs.
func DefaultTemplateHeader() string {
	return `# passthrough configuration
# See: https://github.com/yaklabco/passthrough`
}

package configloader

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix for all passthrough environment variables.
const envPrefix = "PASSTHROUGH"

// LoadFromEnv reads PASSTHROUGH_* environment variables. Variables that are
// not set leave the corresponding field nil.
func LoadFromEnv() (*Overrides, error) {
	var overrides Overrides
	if err := envconfig.Process(envPrefix, &overrides); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &overrides, nil
}

// ListEnvVars returns all supported environment variables with their descriptions.
func ListEnvVars() map[string]string {
	return map[string]string{
		"PASSTHROUGH_ORIGIN":               "Proxy origin, e.g. https://proxy.example",
		"PASSTHROUGH_WORKERS":              "Number of rewrite workers (0 = one per CPU)",
		"PASSTHROUGH_JOB_TIMEOUT":          "Per-job timeout as a Go duration",
		"PASSTHROUGH_TICK_INTERVAL":        "Scheduling period as a Go duration",
		"PASSTHROUGH_CHUNK_SIZE":           "Streamed chunk size in bytes",
		"PASSTHROUGH_INJECT_HOOK":          "Insert the bootstrap script: true or false",
		"PASSTHROUGH_INLINE_STYLES":        "Rewrite inline styles: true or false",
		"PASSTHROUGH_VERIFY_SCRIPTS":       "Parse-check rewritten scripts: true or false",
		"PASSTHROUGH_SKIP_INTEGER_INDEXES": "Leave integer index access unwrapped: true or false",
		"PASSTHROUGH_MAX_BODY_BYTES":       "Limit on decompressed bodies in bytes",
		"PASSTHROUGH_LOG_LEVEL":            "Log level: debug, info, warn, or error",
	}
}

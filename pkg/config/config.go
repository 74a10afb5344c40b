// Package config defines the passthrough configuration types.
// These types are plain data; loading and layering live in internal/configloader.
package config

import (
	"fmt"
	"time"
)

// Defaults applied by NewConfig.
const (
	DefaultOrigin       = "http://localhost:8080"
	DefaultWorkerCount  = 12
	DefaultJobTimeout   = 30 * time.Second
	DefaultTickInterval = 100 * time.Millisecond
	DefaultChunkSize    = 32 << 10
	DefaultMaxBodyBytes = 32 << 20
	DefaultLogLevel     = "info"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// such as "30s" or "100ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// ProxyConfig describes the proxy that rewritten URLs point at.
type ProxyConfig struct {
	// Origin is the proxy's scheme and host, e.g. "https://proxy.example".
	Origin string `yaml:"origin"`
}

// WorkersConfig controls the rewrite worker pool.
type WorkersConfig struct {
	// Count is the number of long-lived workers (0 = one per CPU).
	Count int `yaml:"count"`

	// JobTimeout is how long a job may run before its worker is recycled.
	JobTimeout Duration `yaml:"job_timeout"`

	// TickInterval is the period of the scheduling loop.
	TickInterval Duration `yaml:"tick_interval"`

	// ChunkSize is the size of streamed output chunks in bytes.
	ChunkSize int `yaml:"chunk_size"`
}

// RewriteConfig controls the rewriters.
type RewriteConfig struct {
	InjectHook         bool  `yaml:"inject_hook"`
	InlineStyles       bool  `yaml:"inline_styles"`
	VerifyScripts      bool  `yaml:"verify_scripts"`
	SkipIntegerIndexes bool  `yaml:"skip_integer_indexes"`
	MaxBodyBytes       int64 `yaml:"max_body_bytes"`
}

// Config is the root configuration structure for passthrough.
type Config struct {
	Proxy   ProxyConfig   `yaml:"proxy"`
	Workers WorkersConfig `yaml:"workers"`
	Rewrite RewriteConfig `yaml:"rewrite"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// NewConfig returns a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Proxy: ProxyConfig{Origin: DefaultOrigin},
		Workers: WorkersConfig{
			Count:        DefaultWorkerCount,
			JobTimeout:   Duration(DefaultJobTimeout),
			TickInterval: Duration(DefaultTickInterval),
			ChunkSize:    DefaultChunkSize,
		},
		Rewrite: RewriteConfig{
			InjectHook:   true,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		LogLevel: DefaultLogLevel,
	}
}

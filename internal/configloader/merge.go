package configloader

import (
	"time"

	"github.com/yaklabco/passthrough/pkg/config"
)

// Overrides holds settings that come from the environment or from CLI flags.
// A nil field is unset and leaves the lower layers alone, so an override can
// turn a boolean off as well as on.
type Overrides struct {
	Origin             *string        `envconfig:"ORIGIN"`
	Workers            *int           `envconfig:"WORKERS"`
	JobTimeout         *time.Duration `envconfig:"JOB_TIMEOUT"`
	TickInterval       *time.Duration `envconfig:"TICK_INTERVAL"`
	ChunkSize          *int           `envconfig:"CHUNK_SIZE"`
	InjectHook         *bool          `envconfig:"INJECT_HOOK"`
	InlineStyles       *bool          `envconfig:"INLINE_STYLES"`
	VerifyScripts      *bool          `envconfig:"VERIFY_SCRIPTS"`
	SkipIntegerIndexes *bool          `envconfig:"SKIP_INTEGER_INDEXES"`
	MaxBodyBytes       *int64         `envconfig:"MAX_BODY_BYTES"`
	LogLevel           *string        `envconfig:"LOG_LEVEL"`
}

// merge returns a copy of base with every set field of override applied.
func merge(base *config.Config, override *Overrides) *config.Config {
	if base == nil {
		base = config.NewConfig()
	}
	result := base.Clone()
	if override == nil {
		return result
	}

	if override.Origin != nil {
		result.Proxy.Origin = *override.Origin
	}

	if override.Workers != nil {
		result.Workers.Count = *override.Workers
	}
	if override.JobTimeout != nil {
		result.Workers.JobTimeout = config.Duration(*override.JobTimeout)
	}
	if override.TickInterval != nil {
		result.Workers.TickInterval = config.Duration(*override.TickInterval)
	}
	if override.ChunkSize != nil {
		result.Workers.ChunkSize = *override.ChunkSize
	}

	if override.InjectHook != nil {
		result.Rewrite.InjectHook = *override.InjectHook
	}
	if override.InlineStyles != nil {
		result.Rewrite.InlineStyles = *override.InlineStyles
	}
	if override.VerifyScripts != nil {
		result.Rewrite.VerifyScripts = *override.VerifyScripts
	}
	if override.SkipIntegerIndexes != nil {
		result.Rewrite.SkipIntegerIndexes = *override.SkipIntegerIndexes
	}
	if override.MaxBodyBytes != nil {
		result.Rewrite.MaxBodyBytes = *override.MaxBodyBytes
	}

	if override.LogLevel != nil {
		result.LogLevel = *override.LogLevel
	}

	return result
}

// MergeAll applies overrides to base in order, with later overrides taking precedence.
func MergeAll(base *config.Config, overrides ...*Overrides) *config.Config {
	result := base
	for _, override := range overrides {
		result = merge(result, override)
	}
	if result == nil {
		return config.NewConfig()
	}
	return result.Clone()
}

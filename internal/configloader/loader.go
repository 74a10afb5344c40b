// Package configloader provides configuration loading and resolution.
// It implements XDG-compliant configuration discovery, layered merging,
// environment variable support, and validation.
package configloader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/pkg/config"
)

// LoadOptions controls configuration loading behavior.
type LoadOptions struct {
	// WorkingDir is the directory to search from for project config.
	// Defaults to current working directory if empty.
	WorkingDir string

	// ExplicitPath is an explicit config file path (from --config flag).
	ExplicitPath string

	// IgnoreUserConfig skips loading user-level configuration.
	IgnoreUserConfig bool

	// IgnoreProjectConfig skips loading project-level configuration.
	IgnoreProjectConfig bool

	// IgnoreEnv skips loading environment variables.
	IgnoreEnv bool

	// CLI contains settings from CLI flags. These take highest precedence.
	CLI *Overrides
}

// LoadResult contains the resolved configuration and metadata.
type LoadResult struct {
	// Config is the final merged configuration.
	Config *config.Config

	// Paths contains the discovered configuration file paths.
	Paths *ConfigPaths

	// LoadedFrom lists the files that were actually loaded (in order).
	LoadedFrom []string

	// Warnings contains non-fatal issues encountered during loading.
	Warnings []string
}

// Load resolves the final configuration by merging all sources.
// Precedence (highest to lowest):
//  1. CLI flags (opts.CLI)
//  2. Environment variables (PASSTHROUGH_*)
//  3. Explicit config file (opts.ExplicitPath)
//  4. Project config (.passthrough.yml upward search)
//  5. User config ($XDG_CONFIG_HOME/passthrough/config.yaml)
//  6. Defaults
//
// Every file is checked on its own and all problems are returned together.
func Load(ctx context.Context, opts LoadOptions) (*LoadResult, error) {
	logger := logging.FromContext(ctx)

	workDir := opts.WorkingDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
	}

	paths, err := DiscoverPaths(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("discover paths: %w", err)
	}
	if opts.IgnoreUserConfig {
		paths.User = ""
	}
	if opts.IgnoreProjectConfig {
		paths.Project = ""
	}
	paths.Explicit = opts.ExplicitPath

	result := &LoadResult{Paths: paths}
	cfg := config.NewConfig()
	problems := &ValidationResult{}

	// Lowest to highest precedence.
	for _, path := range []string{paths.User, paths.Project, paths.Explicit} {
		if path == "" {
			continue
		}

		layered, err := loadConfigFile(path, cfg, result, problems)
		if err != nil {
			return nil, err
		}
		cfg = layered
		result.LoadedFrom = append(result.LoadedFrom, path)
		logger.Debug("loaded config file", logging.FieldPath, path)
	}

	if err := problems.Err(); err != nil {
		return nil, err
	}

	if !opts.IgnoreEnv {
		env, err := LoadFromEnv()
		if err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
		cfg = merge(cfg, env)
	}

	cfg = merge(cfg, opts.CLI)

	validation := Validate(cfg)
	if err := validation.Err(); err != nil {
		return nil, err
	}
	for _, w := range validation.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}

	result.Config = cfg
	return result, nil
}

// loadConfigFile decodes path over base. The file is also validated on its
// own against the defaults, so an error names the file that caused it.
// Unknown keys are reported as warnings.
func loadConfigFile(
	path string,
	base *config.Config,
	result *LoadResult,
	problems *ValidationResult,
) (*config.Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	layered := base.Clone()
	if err := config.DecodeInto(layered, content, false); err != nil {
		return nil, &ValidationError{FilePath: path, Message: err.Error()}
	}

	if err := config.DecodeInto(config.NewConfig(), content, true); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: %s", path, strings.TrimPrefix(err.Error(), "parse yaml: ")))
	}

	alone := config.NewConfig()
	if err := config.DecodeInto(alone, content, false); err == nil {
		fileCheck := ValidateWithFile(alone, path)
		problems.Errors = append(problems.Errors, fileCheck.Errors...)
		problems.Warnings = append(problems.Warnings, fileCheck.Warnings...)
	}

	return layered, nil
}

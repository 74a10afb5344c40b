package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/passthrough/internal/configloader"
	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/pkg/config"
)

// loadConfig resolves the layered configuration for cmd with overrides
// applied last, and sets the log level from it unless --debug was given.
func loadConfig(cmd *cobra.Command, overrides *configloader.Overrides) (*config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("get config flag: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, ioError(fmt.Errorf("get working directory: %w", err))
	}

	result, err := configloader.Load(ctx, configloader.LoadOptions{
		WorkingDir:   workDir,
		ExplicitPath: configPath,
		CLI:          overrides,
	})
	if err != nil {
		return nil, configError(fmt.Errorf("load configuration: %w", err))
	}
	cfg := result.Config

	if debug, _ := cmd.Flags().GetBool("debug"); !debug {
		logging.SetLevel(cfg.LogLevel)
	}

	logger := logging.Default()
	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}
	if len(result.LoadedFrom) > 0 {
		logger.Debug("loaded configuration from", logging.FieldPaths, result.LoadedFrom)
	}
	logger.Debug("configuration loaded",
		logging.FieldOrigin, cfg.Proxy.Origin,
		logging.FieldWorkers, cfg.Workers.Count,
		logging.FieldTimeout, cfg.Workers.JobTimeout,
	)

	return cfg, nil
}

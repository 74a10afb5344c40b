package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yaklabco/passthrough/internal/configloader"
	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/pkg/config"
	"github.com/yaklabco/passthrough/pkg/fsutil"
)

// defaultConfigFile is the project configuration file written by init.
const defaultConfigFile = ".passthrough.yml"

type initFlags struct {
	force  bool
	full   bool
	output string
	origin string
}

func newInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new passthrough configuration file",
		Long: `Create a new .passthrough.yml configuration file in the current directory.
The minimal template sets only the proxy origin and lists every other
setting as a comment with its default.

Examples:
  passthrough init                                Create minimal .passthrough.yml
  passthrough init --full                         Write every setting explicitly
  passthrough init --origin https://proxy.local   Set the proxy origin
  passthrough init --output custom.yml            Write to a custom file path`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runInit(ctx, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite existing configuration file")
	cmd.Flags().BoolVar(&flags.full, "full", false, "Generate a template with every setting active")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file path (default: .passthrough.yml)")
	cmd.Flags().StringVar(&flags.origin, "origin", config.DefaultOrigin, "Proxy origin written to the template")

	return cmd
}

func runInit(ctx context.Context, flags *initFlags) error {
	logger := logging.Default()

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultConfigFile
	}

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if _, err := os.Stat(absPath); err == nil {
		if !flags.force {
			return usageError(fmt.Errorf("file %q already exists; use --force to overwrite", outputPath))
		}
		logger.Warn("overwriting existing file", logging.FieldPath, outputPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return ioError(fmt.Errorf("stat %s: %w", outputPath, err))
	}

	opts := config.TemplateOptions{
		Full:   flags.full,
		Origin: flags.origin,
	}
	if flags.full {
		opts.EnvVars = configloader.ListEnvVars()
	}
	content := config.GenerateTemplate(opts)

	if err := fsutil.WriteAtomic(ctx, absPath, content, fsutil.DefaultFileMode); err != nil {
		return ioError(fmt.Errorf("write file: %w", err))
	}

	logger.Info("created configuration file", logging.FieldPath, outputPath)
	logger.Info("run 'passthrough rewrite --help' to see how settings apply")

	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaklabco/passthrough/internal/configloader"
	"github.com/yaklabco/passthrough/pkg/hook"
	"github.com/yaklabco/passthrough/pkg/urlcodec"
)

func newHookCommand() *cobra.Command {
	var origin string
	var raw bool

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Print the bootstrap script injected into HTML",
		Long: `Print the bootstrap script that the HTML rewriter inserts into every
document, with the proxy origin substituted. The script installs the runtime
guard that rewritten property accesses call.`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := &configloader.Overrides{}
			if cmd.Flags().Changed("origin") {
				overrides.Origin = &origin
			}
			cfg, err := loadConfig(cmd, overrides)
			if err != nil {
				return err
			}

			codec := urlcodec.New(cfg.Proxy.Origin)
			opts := hook.Options{Origin: codec.Origin(), Prefix: codec.Prefix()}

			script := hook.Script(opts)
			if raw {
				script = hook.Source(opts)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), script); err != nil {
				return ioError(fmt.Errorf("write output: %w", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "proxy origin (default from configuration)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the JavaScript without the script element")

	return cmd
}

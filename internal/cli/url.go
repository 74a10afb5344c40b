package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaklabco/passthrough/internal/configloader"
	"github.com/yaklabco/passthrough/pkg/urlcodec"
)

func newURLCommand() *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Encode or decode proxy URLs",
		Long: `Convert between destination URLs and the proxy paths the rewriter
produces. Absolute URLs encode to <origin>/q/<payload>/, relative references
to a bare <payload>/.

Examples:
  passthrough url encode https://example.com/app.js
  passthrough url decode http://localhost:8080/q/aHR0cHM6Ly9leGFtcGxlLmNvbS9hcHAuanM%3D/`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&origin, "origin", "", "proxy origin (default from configuration)")

	convert := func(cmd *cobra.Command, args []string, fn func(*urlcodec.Codec, string) string) error {
		overrides := &configloader.Overrides{}
		if cmd.Flags().Changed("origin") {
			overrides.Origin = &origin
		}
		cfg, err := loadConfig(cmd, overrides)
		if err != nil {
			return err
		}

		codec := urlcodec.New(cfg.Proxy.Origin)
		for _, arg := range args {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), fn(codec, arg)); err != nil {
				return ioError(fmt.Errorf("write output: %w", err))
			}
		}
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <url>...",
		Short: "Encode destination URLs as proxy references",
		Args:  positional(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, args, (*urlcodec.Codec).Encode)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decode <reference>...",
		Short: "Decode proxy references back to destination URLs",
		Args:  positional(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, args, (*urlcodec.Codec).Decode)
		},
	})

	return cmd
}

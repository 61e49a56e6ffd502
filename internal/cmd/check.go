package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/pngopt/internal/optipng"
	"github.com/jmgilman/pngopt/internal/slogger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that optipng is installed",
	Long: `Check that the configured optipng binary can be found.

Prints the resolved path and exits 0 when it is found, and exits non-zero
otherwise. The binary is looked up on every invocation.`,
	Example: `  pngopt check

  # Check a binary outside PATH
  PNGOPT_OPTIPNG=/opt/optipng/bin/optipng pngopt check`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := requireConfig(cmd)
		if err != nil {
			return err
		}

		opt := newOptimizer(cfg)
		path, err := newExecutor().LookPath(opt.Command())
		if err != nil {
			slogger.L(cmd.Context()).Debug("lookup failed", "command", opt.Command(), "error", err)
			return fmt.Errorf("%w: %s", optipng.ErrToolUnavailable, opt.Command())
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", opt.Command(), path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

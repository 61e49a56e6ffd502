package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/pngopt/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pngopt version, commit and build date",
	Args:  cobra.NoArgs,
	// Needs neither config nor a logger.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), version.Long(rootCmd.Name()))
		return err
	},
}

func init() {
	rootCmd.Version = version.Short()
	rootCmd.AddCommand(versionCmd)
}

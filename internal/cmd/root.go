// Package cmd implements the pngopt CLI commands using Cobra.
// It wires configuration, logging and the optipng frontend together for
// the optimize, check, config and version commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/pngopt/internal/config"
	pngexec "github.com/jmgilman/pngopt/internal/exec"
	"github.com/jmgilman/pngopt/internal/optipng"
	"github.com/jmgilman/pngopt/internal/slogger"
)

// newExecutor creates the executor used to run optipng.
var newExecutor = pngexec.New

var rootCmd = &cobra.Command{
	Use:   "pngopt",
	Short: "Optimize PNG files with optipng",
	Long: `pngopt runs the optipng optimizer over PNG files and reports, per file,
how much smaller each one became or why optipng could not process it.

Defaults for the optimization level, extra optipng switches, batching and
the output format are read from ~/.config/pngopt/config.yaml and can be
overridden with PNGOPT_* environment variables or command flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupContext,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	if err := Execute(); err != nil {
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().String("config", "", "path to config file (default ~/.config/pngopt/config.yaml)")
}

// setupContext builds the logger and loads configuration for subcommands.
func setupContext(cmd *cobra.Command, _ []string) error {
	ctx, err := withLogger(cmd)
	if err != nil {
		return err
	}

	loader, err := newLoader(cmd)
	if err != nil {
		return err
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx = WithConfig(ctx, cfg)
	ctx = WithLoader(ctx, loader)
	cmd.SetContext(ctx)

	slogger.L(ctx).Debug("configuration loaded", "path", loader.Path())
	return nil
}

// withLogger returns the command context with a logger attached.
func withLogger(cmd *cobra.Command) (context.Context, error) {
	verbosity, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return nil, fmt.Errorf("get verbose flag: %w", err)
	}

	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return nil, fmt.Errorf("get log-json flag: %w", err)
	}

	logger := slogger.New(slogger.Config{
		Verbosity: verbosity,
		JSON:      jsonLogs,
		Output:    cmd.ErrOrStderr(),
	})
	return slogger.WithLogger(cmd.Context(), logger), nil
}

// newLoader honours --config, falling back to the default location.
func newLoader(cmd *cobra.Command) (*config.Loader, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("get config flag: %w", err)
	}

	if path == "" {
		loader, err := config.NewLoader()
		if err != nil {
			return nil, fmt.Errorf("init config loader: %w", err)
		}
		return loader, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return config.NewLoaderAt(path, home), nil
}

// newOptimizer creates an optipng frontend for the configured binary.
func newOptimizer(cfg *config.Config) *optipng.Optimizer {
	return optipng.New(newExecutor(), optipng.Config{Command: cfg.Tool.Path})
}

// requireConfig fetches the config stored by setupContext.
func requireConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := ConfigFromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

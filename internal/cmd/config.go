package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/pngopt/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify pngopt configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.

Extra optipng switches live under optimize.flags, e.g. optimize.flags.strip.`,
	Example: `  # Show all config
  pngopt config

  # Show the default optimization level
  pngopt config optimize.level

  # Always run optipng at level 5
  pngopt config optimize.level 5

  # Always pass -strip all
  pngopt config optimize.flags.strip all

  # Open config file in editor
  pngopt config --edit`,
	Args: cobra.RangeArgs(0, 2),
	// Config must stay usable when the file fails validation, so it only
	// sets up logging and the loader.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := withLogger(cmd)
		if err != nil {
			return err
		}
		loader, err := newLoader(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(WithLoader(ctx, loader))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := LoaderFromContext(cmd.Context())
		if loader == nil {
			return fmt.Errorf("config loader not initialized")
		}

		editFlag, err := cmd.Flags().GetBool("edit")
		if err != nil {
			return fmt.Errorf("get edit flag: %w", err)
		}
		if editFlag {
			return runEdit(loader)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return runShowAll(out, loader)
		case 1:
			return runShowKey(out, loader, args[0])
		case 2:
			return runSetKey(out, loader, args[0], args[1])
		}

		return nil
	},
}

func runEdit(loader *config.Loader) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return config.ErrNoEditor
	}

	// Load creates the file when it is missing.
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	editorCmd := exec.Command(editor, loader.Path()) //nolint:gosec // user-chosen editor
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runShowAll(w io.Writer, loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = w.Write(out)
	return err
}

func runShowKey(w io.Writer, loader *config.Loader, key string) error {
	if err := config.ValidateKey(key); err != nil {
		return err
	}

	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	if value == nil {
		_, err := fmt.Fprintln(w)
		return err
	}

	switch v := value.(type) {
	case string:
		_, err = fmt.Fprintln(w, v)
	case map[string]any, []any:
		out, merr := yaml.Marshal(v)
		if merr != nil {
			return fmt.Errorf("marshal value: %w", merr)
		}
		_, err = w.Write(out)
	default:
		_, err = fmt.Fprintln(w, value)
	}
	return err
}

func runSetKey(w io.Writer, loader *config.Loader, key, value string) error {
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := loader.Set(key, value); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
}
